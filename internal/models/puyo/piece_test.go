package puyo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondCellOffset(t *testing.T) {
	assert.Equal(t, Coord{0, -1}, SecondCellOffset(OrientationUp))
	assert.Equal(t, Coord{1, 0}, SecondCellOffset(OrientationRight))
	assert.Equal(t, Coord{0, 1}, SecondCellOffset(OrientationDown))
	assert.Equal(t, Coord{-1, 0}, SecondCellOffset(OrientationLeft))

	// 全単射
	seen := map[Coord]bool{}
	for o := Orientation(0); o < 4; o++ {
		seen[SecondCellOffset(o)] = true
	}
	assert.Len(t, seen, 4)
}

func TestOrientation_RotationPeriod(t *testing.T) {
	for start := Orientation(0); start < 4; start++ {
		o := start
		for i := 0; i < 4; i++ {
			o = o.RotateRight()
		}
		assert.Equal(t, start, o)

		o = start
		for i := 0; i < 4; i++ {
			o = o.RotateLeft()
		}
		assert.Equal(t, start, o)
	}
	assert.Equal(t, OrientationLeft, OrientationUp.RotateLeft())
	assert.Equal(t, OrientationRight, OrientationUp.RotateRight())
}

func TestPiece_MovedDoesNotMutate(t *testing.T) {
	p := &Piece{Color1: ColorRed, Color2: ColorBlue, Col: 2, Row: 3}
	moved := p.Moved(-1, 1)
	assert.Equal(t, 2, p.Col)
	assert.Equal(t, 3, p.Row)
	assert.Equal(t, 1, moved.Col)
	assert.Equal(t, 4, moved.Row)

	rotated := p.Rotated(true)
	assert.Equal(t, OrientationUp, p.Orientation)
	assert.Equal(t, OrientationRight, rotated.Orientation)
}

func TestIsValidPlacement(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultCols)

	// 出現位置: 2つ目のぷよは見えない領域に入る
	spawn := &Piece{Color1: ColorRed, Color2: ColorGreen, Col: 2, Row: 0}
	assert.True(t, IsValidPlacement(g, spawn))

	// 左右の壁
	assert.False(t, IsValidPlacement(g, &Piece{Col: -1, Row: 5}))
	assert.False(t, IsValidPlacement(g, &Piece{Col: DefaultCols - 1, Row: 5, Orientation: OrientationRight}))
	assert.False(t, IsValidPlacement(g, &Piece{Col: 0, Row: 5, Orientation: OrientationLeft}))

	// 床
	assert.False(t, IsValidPlacement(g, &Piece{Col: 0, Row: DefaultRows - 1, Orientation: OrientationDown}))
	assert.True(t, IsValidPlacement(g, &Piece{Col: 0, Row: DefaultRows - 1}))

	// 既存のぷよ
	require.NoError(t, g.Set(3, 6, ColorYellow))
	assert.False(t, IsValidPlacement(g, &Piece{Col: 3, Row: 6}))
	assert.False(t, IsValidPlacement(g, &Piece{Col: 2, Row: 6, Orientation: OrientationRight}))
	assert.True(t, IsValidPlacement(g, &Piece{Col: 2, Row: 6}))
}

func TestLockPiece(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultCols)
	p := &Piece{Color1: ColorRed, Color2: ColorBlue, Col: 1, Row: DefaultRows - 1, Orientation: OrientationRight}
	require.NoError(t, g.LockPiece(p))
	assert.Equal(t, ColorRed, g.Cells[DefaultRows-1][1])
	assert.Equal(t, ColorBlue, g.Cells[DefaultRows-1][2])

	// 見えない領域のぷよは捨てられる
	top := &Piece{Color1: ColorGreen, Color2: ColorYellow, Col: 4, Row: 0}
	require.NoError(t, g.LockPiece(top))
	assert.Equal(t, ColorGreen, g.Cells[0][4])
	assert.Equal(t, 3, g.OccupiedCount())
}

func TestColorStrings(t *testing.T) {
	want := []string{"empty", "red", "green", "blue", "yellow", "purple"}
	for c := ColorEmpty; c <= ColorPurple; c++ {
		assert.Equal(t, want[c], c.String())
	}
}

package puyo

import (
	"errors"
	"fmt"
)

const (
	DefaultRows = 12 // 盤面の行数（リファレンス値）
	DefaultCols = 6  // 盤面の列数（リファレンス値）

	// GameOverRow はこの行にぷよが残るとゲームオーバーになる行番号です（上から2段目）。
	GameOverRow = 1
)

// ErrOutOfBounds は盤面の範囲外の座標が指定されたことを表します。
// エンジン内部の経路では移動判定が先に行われるため、通常は発生しません。
var ErrOutOfBounds = errors.New("coordinate out of bounds")

// Color は盤面上のマスの色を表します。
// 色以外の識別情報は持たず、同じ色のマスは区別されません。
type Color int

const (
	ColorEmpty  Color = iota // 0: 空のマス
	ColorRed                 // 1: 赤
	ColorGreen               // 2: 緑
	ColorBlue                // 3: 青
	ColorYellow              // 4: 黄
	ColorPurple              // 5: 紫
)

// 使用する色の数の範囲です。
const (
	MinColors = 3
	MaxColors = 5
)

// Coord は盤面上の座標 (列, 行) です。行は上から下に向かって増えます。
type Coord struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Grid は R行 × C列 のぷよ盤面です。
// Cells[row][col] でアクセスします。サイズはセッション中に変化しません。
type Grid struct {
	Cells [][]Color `json:"cells"`
	rows  int
	cols  int
}

// NewGrid は指定サイズの空の盤面を作成して返します。
func NewGrid(rows, cols int) *Grid {
	cells := make([][]Color, rows)
	for r := range cells {
		cells[r] = make([]Color, cols)
	}
	return &Grid{Cells: cells, rows: rows, cols: cols}
}

// Rows は盤面の行数を返します。
func (g *Grid) Rows() int { return g.rows }

// Cols は盤面の列数を返します。
func (g *Grid) Cols() int { return g.cols }

// InBounds は座標が盤面の範囲内にあるかどうかを判定します。
func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && col < g.cols && row >= 0 && row < g.rows
}

// IsEmpty は座標が範囲内で、かつそのマスが空の場合にtrueを返します。
func (g *Grid) IsEmpty(col, row int) bool {
	return g.InBounds(col, row) && g.Cells[row][col] == ColorEmpty
}

// Get は指定マスの色を返します。
func (g *Grid) Get(col, row int) (Color, error) {
	if !g.InBounds(col, row) {
		return ColorEmpty, fmt.Errorf("get (%d,%d): %w", col, row, ErrOutOfBounds)
	}
	return g.Cells[row][col], nil
}

// Set は指定マスに色（またはColorEmpty）を書き込みます。
//
// Parameters:
//   col, row : 書き込み先の座標
//   color    : 書き込む色
// Returns:
//   error: 範囲外の場合は ErrOutOfBounds
func (g *Grid) Set(col, row int, color Color) error {
	if !g.InBounds(col, row) {
		return fmt.Errorf("set (%d,%d): %w", col, row, ErrOutOfBounds)
	}
	g.Cells[row][col] = color
	return nil
}

// Clear は盤面全体を空にします。
func (g *Grid) Clear() {
	for r := range g.Cells {
		for c := range g.Cells[r] {
			g.Cells[r][c] = ColorEmpty
		}
	}
}

// Clone は盤面のディープコピーを返します。
func (g *Grid) Clone() *Grid {
	ng := NewGrid(g.rows, g.cols)
	for r := range g.Cells {
		copy(ng.Cells[r], g.Cells[r])
	}
	return ng
}

// RowOccupied は指定行に1つでも空でないマスがあればtrueを返します。
func (g *Grid) RowOccupied(row int) bool {
	if row < 0 || row >= g.rows {
		return false
	}
	for _, c := range g.Cells[row] {
		if c != ColorEmpty {
			return true
		}
	}
	return false
}

// OccupiedCount は空でないマスの数を返します。
func (g *Grid) OccupiedCount() int {
	n := 0
	for r := range g.Cells {
		for _, c := range g.Cells[r] {
			if c != ColorEmpty {
				n++
			}
		}
	}
	return n
}

var neighborDeltas = [4]Coord{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// ConnectedRegion は (col,row) から上下左右に同じ色でつながるマスの集合を返します。
// 再帰ではなく明示的なスタックと訪問済み集合で探索するため、
// 盤面全体が同色でも呼び出しの深さは増えません。
// 開始マスが空または範囲外の場合は nil を返します。
func (g *Grid) ConnectedRegion(col, row int) []Coord {
	return g.connectedRegion(col, row, make(map[Coord]bool))
}

// connectedRegion は visited を呼び出し側と共有するフラッドフィルです。
// 既に visited に含まれる開始マスに対しては nil を返します。
func (g *Grid) connectedRegion(col, row int, visited map[Coord]bool) []Coord {
	if !g.InBounds(col, row) {
		return nil
	}
	color := g.Cells[row][col]
	start := Coord{Col: col, Row: row}
	if color == ColorEmpty || visited[start] {
		return nil
	}

	visited[start] = true
	stack := []Coord{start}
	var region []Coord
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		region = append(region, cur)

		for _, d := range neighborDeltas {
			next := Coord{Col: cur.Col + d.Col, Row: cur.Row + d.Row}
			if !g.InBounds(next.Col, next.Row) || visited[next] {
				continue
			}
			if g.Cells[next.Row][next.Col] != color {
				continue
			}
			visited[next] = true
			stack = append(stack, next)
		}
	}
	return region
}

// ApplyGravity は列ごとに空でないマスを下に詰めます。
// 各列内の上下の並び順は保たれ、空いた上側のマスは空になります。
func (g *Grid) ApplyGravity() {
	for c := 0; c < g.cols; c++ {
		dest := g.rows - 1 // 次にぷよを置く最も下の行
		for r := g.rows - 1; r >= 0; r-- {
			color := g.Cells[r][c]
			if color == ColorEmpty {
				continue
			}
			if dest != r {
				g.Cells[dest][c] = color
				g.Cells[r][c] = ColorEmpty
			}
			dest--
		}
	}
}

// FindGroups は盤面を1回走査し、minSize以上の連結領域をすべて返します。
// 訪問済み集合は走査全体で共有されるため、各領域はちょうど1回だけ見つかります。
func (g *Grid) FindGroups(minSize int) [][]Coord {
	visited := make(map[Coord]bool)
	var groups [][]Coord
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			region := g.connectedRegion(c, r, visited)
			if len(region) >= minSize {
				groups = append(groups, region)
			}
		}
	}
	return groups
}

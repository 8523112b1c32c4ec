package puyo

// Orientation は2つ目のぷよが軸ぷよから見てどの方向にあるかを表します。
// 0=上, 1=右, 2=下, 3=左。回転は ±1 (mod 4) で巡回します。
type Orientation int

const (
	OrientationUp Orientation = iota
	OrientationRight
	OrientationDown
	OrientationLeft
)

// secondCellOffsets は向きごとの2つ目のぷよの (列, 行) オフセットです。
var secondCellOffsets = [4]Coord{
	OrientationUp:    {Col: 0, Row: -1},
	OrientationRight: {Col: 1, Row: 0},
	OrientationDown:  {Col: 0, Row: 1},
	OrientationLeft:  {Col: -1, Row: 0},
}

// SecondCellOffset は向きに対応する2つ目のぷよの相対座標を返します。
// 範囲外の値は mod 4 で正規化されます。
func SecondCellOffset(o Orientation) Coord {
	return secondCellOffsets[o.normalize()]
}

func (o Orientation) normalize() Orientation {
	return ((o % 4) + 4) % 4
}

// RotateRight は時計回りに1段階回転した向きを返します。
func (o Orientation) RotateRight() Orientation { return (o + 1).normalize() }

// RotateLeft は反時計回りに1段階回転した向きを返します。
func (o Orientation) RotateLeft() Orientation { return (o + 3).normalize() }

// Piece は操作中の2個組ぷよです。
// Color1 が軸ぷよで (Col, Row) に位置し、Color2 は Orientation に従って隣接します。
type Piece struct {
	Color1      Color       `json:"color1"`
	Color2      Color       `json:"color2"`
	Col         int         `json:"col"`
	Row         int         `json:"row"`
	Orientation Orientation `json:"orientation"`
}

// Cells は軸ぷよと2つ目のぷよの盤面座標を返します。
func (p *Piece) Cells() [2]Coord {
	off := SecondCellOffset(p.Orientation)
	return [2]Coord{
		{Col: p.Col, Row: p.Row},
		{Col: p.Col + off.Col, Row: p.Row + off.Row},
	}
}

// Clone はピースのコピーを返します。
// 操作前の状態を残したまま、操作後の候補を検証するために使います。
func (p *Piece) Clone() *Piece {
	np := *p
	return &np
}

// Moved は (dCol, dRow) だけ移動した候補を返します。元のピースは変更しません。
func (p *Piece) Moved(dCol, dRow int) *Piece {
	np := p.Clone()
	np.Col += dCol
	np.Row += dRow
	return np
}

// Rotated は向きを変えた候補を返します。clockwise=false で反時計回りです。
func (p *Piece) Rotated(clockwise bool) *Piece {
	np := p.Clone()
	if clockwise {
		np.Orientation = np.Orientation.RotateRight()
	} else {
		np.Orientation = np.Orientation.RotateLeft()
	}
	return np
}

// ResetToSpawn は位置と向きを出現位置に戻します。
func (p *Piece) ResetToSpawn(spawnCol int) {
	p.Col = spawnCol
	p.Row = 0
	p.Orientation = OrientationUp
}

// IsValidPlacement はピースの2マスがどちらも範囲内かつ空であるかを判定します。
// 移動・回転はすべてこの判定を通してから確定します（仮に動かして戻すことはしません）。
//
// 盤面の上端より上 (row < 0) は出現用の見えない領域として扱い、
// 列が範囲内であれば置けるものとします。出現直後の縦向きの組はここに2つ目がはみ出します。
func IsValidPlacement(g *Grid, p *Piece) bool {
	for _, cell := range p.Cells() {
		if cell.Row < 0 && cell.Col >= 0 && cell.Col < g.Cols() {
			continue
		}
		if !g.IsEmpty(cell.Col, cell.Row) {
			return false
		}
	}
	return true
}

// LockPiece は落下したピースを盤面に固定します。
// 見えない領域 (row < 0) にあるぷよは盤面に書き込まれず消えます。
//
// Returns:
//   error: 範囲外への書き込みが発生した場合（検証済みの経路では起こりません）
func (g *Grid) LockPiece(p *Piece) error {
	colors := [2]Color{p.Color1, p.Color2}
	for i, cell := range p.Cells() {
		if cell.Row < 0 {
			continue
		}
		if err := g.Set(cell.Col, cell.Row, colors[i]); err != nil {
			return err
		}
	}
	return nil
}

// String は色名を返します。
func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	case ColorYellow:
		return "yellow"
	case ColorPurple:
		return "purple"
	default:
		return "empty"
	}
}

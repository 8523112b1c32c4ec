package terminal

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
	puyoservice "github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

// 画面上のレイアウト（単位はセル）
const (
	cellWidth   = 2 // 盤面の1マスは横2セルで描く
	boardLeft   = 1
	boardTop    = 1
	panelGap    = 3
	puyoRune    = '●'
	clearRune   = '✱'
	emptyRune   = '·'
	borderStyle = tcell.AttrDim
)

var (
	styleDefault = tcell.StyleDefault
	styleBorder  = tcell.StyleDefault.Attributes(borderStyle)
	styleLabel   = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleValue   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite).Bold(true)
	styleEmpty   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// colorStyle は色 c のぷよを描くスタイルを返します。
func colorStyle(c puyo.Color) tcell.Style {
	switch c {
	case puyo.ColorRed:
		return styleDefault.Foreground(tcell.ColorRed)
	case puyo.ColorGreen:
		return styleDefault.Foreground(tcell.ColorGreen)
	case puyo.ColorBlue:
		return styleDefault.Foreground(tcell.ColorBlue)
	case puyo.ColorYellow:
		return styleDefault.Foreground(tcell.ColorYellow)
	case puyo.ColorPurple:
		return styleDefault.Foreground(tcell.ColorPurple)
	default:
		return styleEmpty
	}
}

// Renderer はスナップショットを tcell の画面に描画します。puyo.Renderer を満たします。
type Renderer struct {
	mu     sync.Mutex
	screen tcell.Screen
	last   *puyoservice.Snapshot
}

var _ puyoservice.Renderer = (*Renderer)(nil)

// NewRenderer は初期化済みの画面に描画する Renderer を作成します。
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Render は snap を描画して画面に反映します。
func (r *Renderer) Render(snap puyoservice.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &snap
	r.draw(snap)
}

// Redraw は最後のスナップショットを描き直します（リサイズ時など）。
func (r *Renderer) Redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen.Sync()
	if r.last != nil {
		r.draw(*r.last)
	}
}

func (r *Renderer) draw(snap puyoservice.Snapshot) {
	r.screen.Clear()
	r.drawBoard(snap)
	r.drawPanel(snap)
	r.drawBanner(snap)
	r.screen.Show()
}

// cellOrigin は盤面のマス (col, row) の画面上の位置です。
func cellOrigin(col, row int) (int, int) {
	return boardLeft + 1 + col*cellWidth, boardTop + 1 + row
}

func (r *Renderer) drawBoard(snap puyoservice.Snapshot) {
	width := snap.Cols*cellWidth + 2
	height := snap.Rows + 2
	r.drawBox(boardLeft, boardTop, width, height)

	clearing := make(map[puyo.Coord]bool, len(snap.Clearing))
	for _, c := range snap.Clearing {
		clearing[c] = true
	}

	for row := 0; row < snap.Rows; row++ {
		for col := 0; col < snap.Cols; col++ {
			x, y := cellOrigin(col, row)
			switch c := snap.Grid[row][col]; {
			case clearing[puyo.Coord{Col: col, Row: row}]:
				r.screen.SetContent(x, y, clearRune, nil, styleValue)
			case c == puyo.ColorEmpty:
				r.screen.SetContent(x, y, emptyRune, nil, styleEmpty)
			default:
				r.screen.SetContent(x, y, puyoRune, nil, colorStyle(c))
			}
		}
	}

	if snap.CurrentPiece != nil {
		colors := [2]puyo.Color{snap.CurrentPiece.Color1, snap.CurrentPiece.Color2}
		for i, cell := range snap.CurrentPiece.Cells() {
			if cell.Row < 0 || cell.Row >= snap.Rows || cell.Col < 0 || cell.Col >= snap.Cols {
				continue // 見えない領域
			}
			x, y := cellOrigin(cell.Col, cell.Row)
			r.screen.SetContent(x, y, puyoRune, nil, colorStyle(colors[i]).Bold(true))
		}
	}
}

func (r *Renderer) drawPanel(snap puyoservice.Snapshot) {
	x := boardLeft + snap.Cols*cellWidth + 2 + panelGap
	y := boardTop

	r.drawText(x, y, styleLabel, "NEXT")
	for i, p := range snap.Queue {
		r.drawPair(x+5+i*3, y, p.Color1, p.Color2)
	}
	y += 3

	r.drawText(x, y, styleLabel, "HOLD")
	if snap.HeldPiece != nil {
		r.drawPair(x+5, y, snap.HeldPiece.Color1, snap.HeldPiece.Color2)
	}
	if !snap.CanHold {
		r.drawText(x+8, y+1, styleEmpty, "(used)")
	}
	y += 3

	rows := []struct {
		label string
		value string
	}{
		{"SCORE", fmt.Sprintf("%d", snap.Score)},
		{"BEST", fmt.Sprintf("%d", snap.BestScore)},
		{"CHAIN", fmt.Sprintf("%d", snap.Chain)},
		{"SPEED", fmt.Sprintf("%dms", snap.FallIntervalMs)},
	}
	for _, row := range rows {
		r.drawText(x, y, styleLabel, row.label)
		r.drawText(x+6, y, styleValue, row.value)
		y++
	}
}

// drawPair は出現時と同じ向き（Color1 の上に Color2）で組ぷよを描きます。
func (r *Renderer) drawPair(x, y int, c1, c2 puyo.Color) {
	r.screen.SetContent(x, y, puyoRune, nil, colorStyle(c2))
	r.screen.SetContent(x, y+1, puyoRune, nil, colorStyle(c1))
}

func (r *Renderer) drawBanner(snap puyoservice.Snapshot) {
	var text string
	switch snap.Phase {
	case puyoservice.PhaseTitle:
		text = " PRESS ENTER "
	case puyoservice.PhasePaused:
		text = " PAUSED "
	case puyoservice.PhaseOver:
		text = " GAME OVER - ENTER "
	default:
		return
	}
	boardWidth := snap.Cols*cellWidth + 2
	x := boardLeft + (boardWidth-len(text))/2
	if x < 0 {
		x = 0
	}
	r.drawText(x, boardTop+1+snap.Rows/2, styleBanner, text)
}

func (r *Renderer) drawBox(x, y, w, h int) {
	for i := 1; i < w-1; i++ {
		r.screen.SetContent(x+i, y, tcell.RuneHLine, nil, styleBorder)
		r.screen.SetContent(x+i, y+h-1, tcell.RuneHLine, nil, styleBorder)
	}
	for j := 1; j < h-1; j++ {
		r.screen.SetContent(x, y+j, tcell.RuneVLine, nil, styleBorder)
		r.screen.SetContent(x+w-1, y+j, tcell.RuneVLine, nil, styleBorder)
	}
	r.screen.SetContent(x, y, tcell.RuneULCorner, nil, styleBorder)
	r.screen.SetContent(x+w-1, y, tcell.RuneURCorner, nil, styleBorder)
	r.screen.SetContent(x, y+h-1, tcell.RuneLLCorner, nil, styleBorder)
	r.screen.SetContent(x+w-1, y+h-1, tcell.RuneLRCorner, nil, styleBorder)
}

func (r *Renderer) drawText(x, y int, style tcell.Style, text string) {
	for _, ch := range text {
		r.screen.SetContent(x, y, ch, nil, style)
		x++
	}
}

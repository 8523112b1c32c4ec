package terminal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
	puyoservice "github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

type cell struct {
	r     rune
	style tcell.Style
}

// MockScreen records drawn cells and replays queued events.
type MockScreen struct {
	tcell.Screen
	mu     sync.Mutex
	cells  map[[2]int]cell
	shows  int
	syncs  int
	events chan tcell.Event
}

func newMockScreen() *MockScreen {
	return &MockScreen{cells: make(map[[2]int]cell), events: make(chan tcell.Event, 10)}
}

func (m *MockScreen) Size() (int, int) { return 80, 24 }
func (m *MockScreen) Init() error      { return nil }
func (m *MockScreen) Fini()            {}

func (m *MockScreen) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells = make(map[[2]int]cell)
}

func (m *MockScreen) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows++
}

func (m *MockScreen) Sync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
}

func (m *MockScreen) SetContent(x, y int, mainc rune, combc []rune, style tcell.Style) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[[2]int{x, y}] = cell{r: mainc, style: style}
}

func (m *MockScreen) PollEvent() tcell.Event {
	ev, ok := <-m.events
	if !ok {
		return nil
	}
	return ev
}

func (m *MockScreen) at(x, y int) cell {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cells[[2]int{x, y}]
}

// line returns the runes drawn on row y.
func (m *MockScreen) line(y int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for x := 0; x < 80; x++ {
		if c, ok := m.cells[[2]int{x, y}]; ok {
			b.WriteRune(c.r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func (m *MockScreen) text() string {
	var lines []string
	for y := 0; y < 24; y++ {
		lines = append(lines, m.line(y))
	}
	return strings.Join(lines, "\n")
}

func testSnapshot() puyoservice.Snapshot {
	s := puyoservice.NewSession(puyoservice.DefaultSettings(), nil, nil)
	snap := s.Snapshot()
	snap.Phase = puyoservice.PhaseActive
	snap.Grid[11][0] = puyo.ColorRed
	snap.Grid[11][1] = puyo.ColorBlue
	snap.CurrentPiece = &puyo.Piece{Color1: puyo.ColorGreen, Color2: puyo.ColorYellow, Col: 2, Row: 0}
	snap.Queue = []puyo.Piece{{Color1: puyo.ColorPurple, Color2: puyo.ColorPurple}}
	snap.Score = 1230
	snap.BestScore = 4560
	snap.Chain = 3
	snap.FallIntervalMs = 909
	return snap
}

func TestRenderer_DrawsGridPieceAndPanel(t *testing.T) {
	screen := newMockScreen()
	r := NewRenderer(screen)
	r.Render(testSnapshot())

	x, y := cellOrigin(0, 11)
	got := screen.at(x, y)
	assert.Equal(t, puyoRune, got.r)
	fg, _, _ := got.style.Decompose()
	assert.Equal(t, tcell.ColorRed, fg)

	x, y = cellOrigin(1, 11)
	fg, _, _ = screen.at(x, y).style.Decompose()
	assert.Equal(t, tcell.ColorBlue, fg)

	// 操作中の軸ぷよは描かれ、見えない領域の2つ目は描かれない
	x, y = cellOrigin(2, 0)
	fg, _, _ = screen.at(x, y).style.Decompose()
	assert.Equal(t, tcell.ColorGreen, fg)

	x, y = cellOrigin(3, 5)
	assert.Equal(t, emptyRune, screen.at(x, y).r)

	text := screen.text()
	assert.Contains(t, text, "SCORE 1230")
	assert.Contains(t, text, "BEST  4560")
	assert.Contains(t, text, "CHAIN 3")
	assert.Contains(t, text, "SPEED 909ms")
	assert.Contains(t, text, "NEXT")
	assert.NotContains(t, text, "PAUSED")
	assert.Equal(t, 1, screen.shows)
}

func TestRenderer_Banners(t *testing.T) {
	cases := map[puyoservice.Phase]string{
		puyoservice.PhaseTitle:  "PRESS ENTER",
		puyoservice.PhasePaused: "PAUSED",
		puyoservice.PhaseOver:   "GAME OVER",
	}
	for phase, want := range cases {
		t.Run(string(phase), func(t *testing.T) {
			screen := newMockScreen()
			snap := testSnapshot()
			snap.Phase = phase
			NewRenderer(screen).Render(snap)
			assert.Contains(t, screen.text(), want)
		})
	}
}

func TestRenderer_ClearingCellsFlash(t *testing.T) {
	screen := newMockScreen()
	snap := testSnapshot()
	snap.Clearing = []puyo.Coord{{Col: 4, Row: 10}}
	NewRenderer(screen).Render(snap)

	x, y := cellOrigin(4, 10)
	assert.Equal(t, clearRune, screen.at(x, y).r)
}

func TestRenderer_RedrawRepaintsLastSnapshot(t *testing.T) {
	screen := newMockScreen()
	r := NewRenderer(screen)
	r.Redraw()
	assert.Equal(t, 0, screen.shows, "nothing to draw yet")

	r.Render(testSnapshot())
	screen.Clear()
	r.Redraw()
	assert.Equal(t, 2, screen.syncs)
	assert.Contains(t, screen.text(), "SCORE 1230")
}

func TestKeyMap_DefaultBindings(t *testing.T) {
	km := DefaultKeyMap()
	cases := []struct {
		ev   *tcell.EventKey
		want puyoservice.Command
	}{
		{tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), puyoservice.CommandMoveLeft},
		{tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone), puyoservice.CommandMoveLeft},
		{tcell.NewEventKey(tcell.KeyRune, 'h', tcell.ModNone), puyoservice.CommandMoveLeft},
		{tcell.NewEventKey(tcell.KeyRune, 'L', tcell.ModShift), puyoservice.CommandMoveRight},
		{tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), puyoservice.CommandMoveDown},
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), puyoservice.CommandRotateRight},
		{tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone), puyoservice.CommandRotateLeft},
		{tcell.NewEventKey(tcell.KeyRune, 'c', tcell.ModNone), puyoservice.CommandHold},
		{tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone), puyoservice.CommandTogglePause},
		{tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), puyoservice.CommandStart},
	}
	for _, tc := range cases {
		got, ok := km.Lookup(tc.ev)
		require.True(t, ok, tc.ev.Name())
		assert.Equal(t, tc.want, got, tc.ev.Name())
	}

	_, ok := km.Lookup(tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone))
	assert.False(t, ok)
	assert.True(t, km.IsQuit(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.True(t, km.IsQuit(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	assert.Len(t, km.Bindings(puyoservice.CommandMoveLeft), 3)
}

func TestKeyMap_Rebind(t *testing.T) {
	km := DefaultKeyMap()
	km.Bind(puyoservice.CommandHold, RuneBinding('q'))

	q := tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)
	assert.False(t, km.IsQuit(q))
	cmd, ok := km.Lookup(q)
	require.True(t, ok)
	assert.Equal(t, puyoservice.CommandHold, cmd)
}

type recordingSink struct {
	mu   sync.Mutex
	cmds []puyoservice.Command
}

func (s *recordingSink) Send(cmd puyoservice.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
	return true
}

func (s *recordingSink) sent() []puyoservice.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]puyoservice.Command(nil), s.cmds...)
}

func TestApp_RunForwardsKeysUntilQuit(t *testing.T) {
	screen := newMockScreen()
	sink := &recordingSink{}
	app := NewApp(screen, NewRenderer(screen), nil, sink)

	screen.events <- tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	screen.events <- tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	screen.events <- tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone)
	screen.events <- tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)

	done := make(chan struct{})
	go func() {
		app.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("app did not quit")
	}
	assert.Equal(t, []puyoservice.Command{puyoservice.CommandStart, puyoservice.CommandRotateRight}, sink.sent())
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	screen := newMockScreen()
	app := NewApp(screen, NewRenderer(screen), nil, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
	close(screen.events)
}

package puyo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
)

// setCurrent は操作中の組ぷよを指定した色で出現位置に置き直します。
func setCurrent(s *Session, c1, c2 puyo.Color) {
	p := &puyo.Piece{Color1: c1, Color2: c2}
	p.ResetToSpawn(s.settings.SpawnCol())
	s.CurrentPiece = p
}

// resolveAll は待ち時間なしで連鎖解決を最後まで進め、連鎖数と加算された得点を返します。
func resolveAll(s *Session) (int, int) {
	chain, total := 0, 0
	for {
		step, ok := StepResolution(s)
		if !ok || step.Done {
			return chain, total
		}
		chain = step.Chain
		total += step.Score
	}
}

// dropPiece は固定されるまで組ぷよを下げ続けます。
func dropPiece(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i <= s.Grid.Rows()+1 && !s.Animating; i++ {
		require.True(t, ApplyPlayerInput(s, CommandMoveDown))
	}
	require.True(t, s.Animating, "piece should be locked")
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("rotate_left")
	assert.True(t, ok)
	assert.Equal(t, CommandRotateLeft, cmd)

	_, ok = ParseCommand("hard_drop")
	assert.False(t, ok)
}

func TestApplyPlayerInput_IgnoredBeforeStart(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	for _, cmd := range []Command{CommandMoveLeft, CommandMoveRight, CommandMoveDown, CommandRotateLeft, CommandRotateRight, CommandHold, CommandTogglePause} {
		assert.False(t, ApplyPlayerInput(s, cmd), cmd)
	}
	assert.Equal(t, PhaseTitle, s.Phase)
	assert.False(t, AutoFall(s))
}

func TestApplyPlayerInput_Move(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())

	assert.True(t, ApplyPlayerInput(s, CommandMoveLeft))
	assert.Equal(t, 1, s.CurrentPiece.Col)
	assert.True(t, ApplyPlayerInput(s, CommandMoveLeft))
	assert.False(t, ApplyPlayerInput(s, CommandMoveLeft), "left wall")
	assert.Equal(t, 0, s.CurrentPiece.Col)

	for ApplyPlayerInput(s, CommandMoveRight) {
	}
	assert.Equal(t, s.Grid.Cols()-1, s.CurrentPiece.Col)

	assert.True(t, ApplyPlayerInput(s, CommandMoveDown))
	assert.Equal(t, 1, s.CurrentPiece.Row)
}

func TestApplyPlayerInput_MoveBlockedByCell(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())
	require.NoError(t, s.Grid.Set(1, 0, puyo.ColorRed))

	before := *s.CurrentPiece
	assert.False(t, ApplyPlayerInput(s, CommandMoveLeft))
	assert.Equal(t, before, *s.CurrentPiece)
}

func TestApplyPlayerInput_RotateWithoutWallKick(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())

	// 中央では4回転で元の向きに戻る
	for i := 0; i < 4; i++ {
		require.True(t, ApplyPlayerInput(s, CommandRotateRight))
	}
	assert.Equal(t, puyo.OrientationUp, s.CurrentPiece.Orientation)
	assert.True(t, ApplyPlayerInput(s, CommandRotateLeft))
	assert.Equal(t, puyo.OrientationLeft, s.CurrentPiece.Orientation)
	assert.True(t, ApplyPlayerInput(s, CommandRotateRight))

	// 左端では左向きに回転できず、位置も変わらない
	for ApplyPlayerInput(s, CommandMoveLeft) {
	}
	assert.False(t, ApplyPlayerInput(s, CommandRotateLeft))
	assert.Equal(t, puyo.OrientationUp, s.CurrentPiece.Orientation)
	assert.Equal(t, 0, s.CurrentPiece.Col)

	// 右端では右向きに回転できない
	for ApplyPlayerInput(s, CommandMoveRight) {
	}
	assert.False(t, ApplyPlayerInput(s, CommandRotateRight))
	assert.Equal(t, puyo.OrientationUp, s.CurrentPiece.Orientation)
	assert.Equal(t, s.Grid.Cols()-1, s.CurrentPiece.Col)
}

func TestApplyPlayerInput_RotateIntoOccupiedCell(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())
	col := s.CurrentPiece.Col
	require.NoError(t, s.Grid.Set(col+1, 0, puyo.ColorGreen))

	assert.False(t, ApplyPlayerInput(s, CommandRotateRight))
	assert.Equal(t, puyo.OrientationUp, s.CurrentPiece.Orientation)
}

func TestTogglePause(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())

	require.True(t, ApplyPlayerInput(s, CommandTogglePause))
	assert.Equal(t, PhasePaused, s.Phase)
	assert.True(t, s.Paused())

	row := s.CurrentPiece.Row
	assert.False(t, ApplyPlayerInput(s, CommandMoveLeft))
	assert.False(t, ApplyPlayerInput(s, CommandHold))
	assert.False(t, AutoFall(s))
	assert.False(t, SpeedUp(s))
	assert.Equal(t, row, s.CurrentPiece.Row)

	require.True(t, ApplyPlayerInput(s, CommandTogglePause))
	assert.Equal(t, PhaseActive, s.Phase)
	assert.True(t, AutoFall(s))
	assert.Equal(t, row+1, s.CurrentPiece.Row)
}

func TestHold(t *testing.T) {
	cues := &recordingCues{}
	s, _ := newTestSession(t, nil, cues)
	require.True(t, s.Start())

	setCurrent(s, puyo.ColorRed, puyo.ColorGreen)
	s.Queue[0] = &puyo.Piece{Color1: puyo.ColorBlue, Color2: puyo.ColorBlue}
	require.True(t, ApplyPlayerInput(s, CommandMoveLeft))

	// 最初のホールド: 現在の組をしまい、ネクストの先頭が出る
	require.True(t, ApplyPlayerInput(s, CommandHold))
	require.NotNil(t, s.HeldPiece)
	assert.Equal(t, puyo.ColorRed, s.HeldPiece.Color1)
	assert.Equal(t, puyo.ColorGreen, s.HeldPiece.Color2)
	assert.Equal(t, puyo.ColorBlue, s.CurrentPiece.Color1)
	assert.Equal(t, s.settings.SpawnCol(), s.CurrentPiece.Col)
	assert.Equal(t, 0, s.CurrentPiece.Row)
	assert.False(t, s.CanHold)
	assert.Len(t, s.Queue, DefaultLookahead)

	// 同じサイクルでの2回目は何もしない
	assert.False(t, ApplyPlayerInput(s, CommandHold))
	assert.Equal(t, puyo.ColorBlue, s.CurrentPiece.Color1)

	// 固定して解決が終わると再びホールドでき、今度は入れ替えになる
	dropPiece(t, s)
	resolveAll(s)
	require.Equal(t, PhaseActive, s.Phase)
	assert.True(t, s.CanHold)

	nextColors := [2]puyo.Color{s.CurrentPiece.Color1, s.CurrentPiece.Color2}
	require.True(t, ApplyPlayerInput(s, CommandHold))
	assert.Equal(t, puyo.ColorRed, s.CurrentPiece.Color1)
	assert.Equal(t, puyo.ColorGreen, s.CurrentPiece.Color2)
	assert.Equal(t, s.settings.SpawnCol(), s.CurrentPiece.Col)
	assert.Equal(t, nextColors, [2]puyo.Color{s.HeldPiece.Color1, s.HeldPiece.Color2})

	assert.Contains(t, cues.kinds(), CueHold)
}

func TestLock_StartsResolutionAndGatesInput(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())

	dropPiece(t, s)
	assert.Nil(t, s.CurrentPiece)
	assert.Equal(t, 2, s.Grid.OccupiedCount())

	// 解決中は移動・自動落下を受け付けないが、一時停止は切り替えられる
	assert.False(t, ApplyPlayerInput(s, CommandMoveLeft))
	assert.False(t, ApplyPlayerInput(s, CommandHold))
	assert.False(t, AutoFall(s))
	assert.True(t, ApplyPlayerInput(s, CommandTogglePause))
	assert.True(t, ApplyPlayerInput(s, CommandTogglePause))

	step, ok := StepResolution(s)
	require.True(t, ok)
	assert.True(t, step.Done)
	assert.False(t, s.Animating)
	require.NotNil(t, s.CurrentPiece)

	_, ok = StepResolution(s)
	assert.False(t, ok)
}

func TestAutoFall_LocksAtBottom(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())

	for i := 0; i < s.Grid.Rows()-1; i++ {
		require.True(t, AutoFall(s))
	}
	assert.Equal(t, s.Grid.Rows()-1, s.CurrentPiece.Row)
	assert.False(t, s.Animating)

	require.True(t, AutoFall(s))
	assert.True(t, s.Animating)
}

// fillColumn は列の指定行から最下段まで、4個つながらないように2色を交互に置きます。
func fillColumn(t *testing.T, g *puyo.Grid, col, fromRow int) {
	t.Helper()
	for r := fromRow; r < g.Rows(); r++ {
		c := puyo.ColorRed
		if r%2 == 0 {
			c = puyo.ColorGreen
		}
		require.NoError(t, g.Set(col, r, c))
	}
}

func TestGameOver_WhenRowOneOccupiedAfterResolution(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())
	fillColumn(t, s.Grid, 0, 2)

	setCurrent(s, puyo.ColorBlue, puyo.ColorYellow)
	s.CurrentPiece.Col = 0
	dropPiece(t, s)
	assert.Equal(t, puyo.ColorBlue, s.Grid.Cells[1][0])
	assert.Equal(t, puyo.ColorYellow, s.Grid.Cells[0][0])

	resolveAll(s)
	assert.Equal(t, PhaseOver, s.Phase)
	assert.False(t, s.Animating)

	// ゲームオーバー後は操作を受け付けず、開始のみ可能
	assert.False(t, ApplyPlayerInput(s, CommandMoveLeft))
	assert.False(t, ApplyPlayerInput(s, CommandTogglePause))
	assert.True(t, s.Start())
	assert.Equal(t, PhaseActive, s.Phase)
}

func TestGameOver_NotTriggeredBelowRowOne(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())
	fillColumn(t, s.Grid, 0, 4)

	setCurrent(s, puyo.ColorBlue, puyo.ColorYellow)
	s.CurrentPiece.Col = 0
	dropPiece(t, s)
	resolveAll(s)

	assert.Equal(t, PhaseActive, s.Phase)
	assert.False(t, s.Grid.RowOccupied(puyo.GameOverRow))
	assert.NotNil(t, s.CurrentPiece)
}

func TestGameOver_SpawnCollision(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	require.True(t, s.Start())
	require.NoError(t, s.Grid.Set(s.settings.SpawnCol(), 0, puyo.ColorPurple))

	s.spawn(&puyo.Piece{Color1: puyo.ColorRed, Color2: puyo.ColorRed})
	assert.Equal(t, PhaseOver, s.Phase)
}

func TestSpeedUp(t *testing.T) {
	s, _ := newTestSession(t, nil, nil)
	assert.False(t, SpeedUp(s), "title")

	require.True(t, s.Start())
	require.True(t, SpeedUp(s))
	want := time.Duration(float64(InitialFallInterval) / s.settings.SpeedUpFactor)
	assert.Equal(t, want, s.FallInterval)
	assert.InDelta(t, 909*time.Millisecond, s.FallInterval, float64(time.Millisecond))

	s.FallInterval = 54 * time.Millisecond
	require.True(t, SpeedUp(s))
	assert.Equal(t, MinFallInterval, s.FallInterval)
	assert.False(t, SpeedUp(s))
	assert.Equal(t, MinFallInterval, s.FallInterval)
}

func TestExpireChain(t *testing.T) {
	s, clock := newTestSession(t, nil, nil)
	assert.False(t, ExpireChain(s, clock.Now()))

	s.Chain = 2
	s.chainResetAt = clock.Now().Add(ChainCooldown)
	assert.False(t, ExpireChain(s, clock.Now().Add(ChainCooldown-time.Millisecond)))
	assert.Equal(t, 2, s.Chain)

	assert.True(t, ExpireChain(s, clock.Now().Add(ChainCooldown)))
	assert.Equal(t, 0, s.Chain)
	assert.True(t, s.ChainResetAt().IsZero())
}

// 空の 12×6 盤面で、1回の固定で赤4個がL字につながると消えて40点・1連鎖になり、
// クールダウン後に連鎖表示が0に戻る。
func TestEndToEnd_LShapeClear(t *testing.T) {
	store := &fakeStore{best: 30}
	cues := &recordingCues{}
	s, clock := newTestSession(t, store, cues)
	require.True(t, s.Start())
	require.Equal(t, 0, s.Grid.OccupiedCount())

	setCurrent(s, puyo.ColorRed, puyo.ColorRed)
	s.Queue[0] = &puyo.Piece{Color1: puyo.ColorRed, Color2: puyo.ColorRed}
	spawnCol := s.settings.SpawnCol()

	// 1組目: 出現列に縦向きのまま落とす
	dropPiece(t, s)
	chain, total := resolveAll(s)
	assert.Equal(t, 0, chain)
	assert.Equal(t, 0, total)
	assert.Equal(t, puyo.ColorRed, s.Grid.Cells[11][spawnCol])
	assert.Equal(t, puyo.ColorRed, s.Grid.Cells[10][spawnCol])

	// 2組目: 横向きにして1列右へずらして落とす
	require.NotNil(t, s.CurrentPiece)
	require.True(t, ApplyPlayerInput(s, CommandRotateRight))
	require.True(t, ApplyPlayerInput(s, CommandMoveRight))
	dropPiece(t, s)

	step, ok := StepResolution(s)
	require.True(t, ok)
	require.False(t, step.Done)
	assert.Equal(t, 1, step.Chain)
	assert.Equal(t, 40, step.Score)
	assert.ElementsMatch(t, []puyo.Coord{
		{Col: spawnCol, Row: 10},
		{Col: spawnCol, Row: 11},
		{Col: spawnCol + 1, Row: 11},
		{Col: spawnCol + 2, Row: 11},
	}, s.Clearing)
	assert.Equal(t, 40, s.Score)
	assert.Equal(t, 1, s.Chain)
	assert.True(t, s.Animating)

	// ハイスコアを超えたので保存される
	assert.Equal(t, 40, s.BestScore)
	assert.Equal(t, []int{40}, store.saved)
	require.NotEmpty(t, cues.cues)
	last := cues.cues[len(cues.cues)-1]
	assert.Equal(t, Cue{Kind: CueChainClear, Chain: 1}, last)

	step, ok = StepResolution(s)
	require.True(t, ok)
	assert.True(t, step.Done)
	assert.Equal(t, 0, s.Grid.OccupiedCount())
	assert.False(t, s.Animating)
	assert.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, 1, s.Chain, "chain stays visible during cooldown")

	clock.Advance(ChainCooldown - time.Millisecond)
	assert.False(t, ExpireChain(s, clock.Now()))
	assert.Equal(t, 1, s.Chain)

	clock.Advance(time.Millisecond)
	assert.True(t, ExpireChain(s, clock.Now()))
	assert.Equal(t, 0, s.Chain)
	assert.Equal(t, 40, s.Score)
}

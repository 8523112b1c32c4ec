package puyo

import (
	"log"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
)

// ゲーム全体の速度などに関わるデフォルト値です。
const (
	InitialFallInterval = 1000 * time.Millisecond // 最初の自動落下間隔
	MinFallInterval     = 50 * time.Millisecond   // 自動落下間隔の下限
	SpeedUpPeriod       = 10 * time.Second        // 落下速度を上げる周期
	SpeedUpFactor       = 1.1                     // 1回の加速で落下間隔を割る値
	ClearDelay          = 250 * time.Millisecond  // 連鎖の各ステップを見せる最短時間
	ChainCooldown       = 3 * time.Second         // 連鎖表示を0に戻すまでの時間
	DefaultColorCount   = 4                       // 使用する色の数
	DefaultLookahead    = 2                       // ネクストの表示数
)

// Settings はセッションごとの設定値です。ゼロ値の項目はデフォルト値で補われます。
type Settings struct {
	Rows             int
	Cols             int
	ColorCount       int
	Lookahead        int
	BaseFallInterval time.Duration
	MinFallInterval  time.Duration
	SpeedUpPeriod    time.Duration
	SpeedUpFactor    float64
	ClearDelay       time.Duration
	ChainCooldown    time.Duration
}

// DefaultSettings はリファレンスの 12×6 盤面の設定を返します。
func DefaultSettings() Settings {
	return Settings{}.withDefaults()
}

func (st Settings) withDefaults() Settings {
	if st.Rows <= 0 {
		st.Rows = puyo.DefaultRows
	}
	if st.Cols <= 0 {
		st.Cols = puyo.DefaultCols
	}
	if st.ColorCount < puyo.MinColors || st.ColorCount > puyo.MaxColors {
		st.ColorCount = DefaultColorCount
	}
	if st.Lookahead <= 0 {
		st.Lookahead = DefaultLookahead
	}
	if st.BaseFallInterval <= 0 {
		st.BaseFallInterval = InitialFallInterval
	}
	if st.MinFallInterval <= 0 {
		st.MinFallInterval = MinFallInterval
	}
	if st.SpeedUpPeriod <= 0 {
		st.SpeedUpPeriod = SpeedUpPeriod
	}
	if st.SpeedUpFactor <= 1 {
		st.SpeedUpFactor = SpeedUpFactor
	}
	if st.ClearDelay <= 0 {
		st.ClearDelay = ClearDelay
	}
	if st.ChainCooldown <= 0 {
		st.ChainCooldown = ChainCooldown
	}
	return st
}

// SpawnCol は組ぷよが出現する列です（6列なら左から3列目）。
func (st Settings) SpawnCol() int {
	return (st.Cols - 1) / 2
}

// Command はプレイヤーの操作です。
type Command string

const (
	CommandMoveLeft    Command = "move_left"
	CommandMoveRight   Command = "move_right"
	CommandMoveDown    Command = "move_down"
	CommandRotateLeft  Command = "rotate_left"
	CommandRotateRight Command = "rotate_right"
	CommandHold        Command = "hold"
	CommandTogglePause Command = "toggle_pause"
	CommandStart       Command = "start" // タイトル・ゲームオーバーからの開始
)

// ParseCommand はクライアントから届いた文字列を Command に変換します。
func ParseCommand(s string) (Command, bool) {
	switch c := Command(s); c {
	case CommandMoveLeft, CommandMoveRight, CommandMoveDown,
		CommandRotateLeft, CommandRotateRight, CommandHold, CommandTogglePause, CommandStart:
		return c, true
	}
	return "", false
}

// acceptsInput は移動・回転・ホールドを受け付けられる状態かどうかを返します。
func (s *Session) acceptsInput() bool {
	return s.Phase == PhaseActive && !s.Animating && s.CurrentPiece != nil
}

// ApplyPlayerInput はプレイヤーの操作をセッションに適用します。
// 開始と一時停止の切り替え以外は、プレイ中かつ連鎖解決中でないときのみ有効で、
// それ以外の状態では何もしません（エラーではありません）。
//
// Parameters:
//   state : 更新するセッション
//   cmd   : プレイヤーの操作
// Returns:
//   bool: 状態が変化した場合はtrue
func ApplyPlayerInput(state *Session, cmd Command) bool {
	switch cmd {
	case CommandTogglePause:
		return togglePause(state)
	case CommandStart:
		return state.Start()
	}
	if !state.acceptsInput() {
		return false
	}

	switch cmd {
	case CommandMoveLeft:
		return tryMove(state, state.CurrentPiece.Moved(-1, 0), CueMove)
	case CommandMoveRight:
		return tryMove(state, state.CurrentPiece.Moved(1, 0), CueMove)
	case CommandMoveDown:
		return moveDown(state, true)
	case CommandRotateLeft:
		// 壁蹴りはしない。回転できなければ向きはそのまま
		return tryMove(state, state.CurrentPiece.Rotated(false), CueRotate)
	case CommandRotateRight:
		return tryMove(state, state.CurrentPiece.Rotated(true), CueRotate)
	case CommandHold:
		return hold(state)
	}
	return false
}

func togglePause(state *Session) bool {
	switch state.Phase {
	case PhaseActive:
		state.Phase = PhasePaused
	case PhasePaused:
		state.Phase = PhaseActive
	default:
		return false
	}
	return true
}

// tryMove は候補の配置を検証し、有効な場合のみ確定します。
func tryMove(state *Session, candidate *puyo.Piece, kind CueKind) bool {
	if !puyo.IsValidPlacement(state.Grid, candidate) {
		return false
	}
	state.CurrentPiece = candidate
	state.cue(kind, 0)
	return true
}

// moveDown は組ぷよを1段下げます。下に進めない場合は固定して連鎖解決を始めます。
func moveDown(state *Session, manual bool) bool {
	candidate := state.CurrentPiece.Moved(0, 1)
	if puyo.IsValidPlacement(state.Grid, candidate) {
		state.CurrentPiece = candidate
		if manual {
			state.cue(CueMove, 0)
		}
		return true
	}
	lockPiece(state)
	return true
}

// lockPiece は組ぷよを盤面に固定し、連鎖解決を開始します。
// 解決が終わるまで Animating が true になり、一時停止以外の操作は受け付けません。
func lockPiece(state *Session) {
	if err := state.Grid.LockPiece(state.CurrentPiece); err != nil {
		// 検証済みの配置なので到達しないはず
		log.Printf("[Session] Failed to lock piece %+v: %v", *state.CurrentPiece, err)
	}
	state.CurrentPiece = nil
	state.Animating = true
	state.Clearing = nil
	state.resolver = NewResolver(state.Grid)
}

// hold はホールド機能です。1回の固定サイクルにつき1度だけ使えます。
func hold(state *Session) bool {
	if !state.CanHold {
		return false
	}

	current := &puyo.Piece{Color1: state.CurrentPiece.Color1, Color2: state.CurrentPiece.Color2}
	if state.HeldPiece == nil {
		// ホールドが空: 現在の組をしまい、ネクストの先頭を出す
		state.HeldPiece = current
		state.spawn(state.nextFromQueue())
	} else {
		// ホールドと入れ替え
		next := state.HeldPiece
		state.HeldPiece = current
		state.spawn(next)
	}
	state.CanHold = false
	state.cue(CueHold, 0)
	return true
}

// AutoFall は自動落下のティックを処理します。
// プレイ中で一時停止しておらず、連鎖解決中でないときのみ1段下げます。
//
// Returns:
//   bool: 落下または固定が起きた場合はtrue
func AutoFall(state *Session) bool {
	if !state.acceptsInput() {
		return false
	}
	return moveDown(state, false)
}

// SpeedUp は落下間隔を SpeedUpFactor で割って短くします。下限は MinFallInterval です。
// プレイ中かつ一時停止していないときのみ有効です。
func SpeedUp(state *Session) bool {
	if state.Phase != PhaseActive {
		return false
	}
	next := time.Duration(float64(state.FallInterval) / state.settings.SpeedUpFactor)
	if next < state.settings.MinFallInterval {
		next = state.settings.MinFallInterval
	}
	if next == state.FallInterval {
		return false
	}
	state.FallInterval = next
	return true
}

// StepResolution は連鎖解決を1ステップ進めます。
// 呼び出し側はステップの間に ClearDelay 以上の間隔を空けることで消去演出を見せます。
//
// Returns:
//   ResolveStep: このステップの結果
//   bool: 解決中でなく何もしなかった場合はfalse
func StepResolution(state *Session) (ResolveStep, bool) {
	if !state.Animating || state.resolver == nil {
		return ResolveStep{}, false
	}

	step := state.resolver.Step()
	if !step.Done {
		state.Chain = step.Chain
		state.chainResetAt = state.now().Add(state.settings.ChainCooldown)
		state.Clearing = step.Cleared
		state.addScore(step.Score)
		state.cue(CueChainClear, step.Chain)
		return step, true
	}

	finishResolution(state)
	return step, true
}

// finishResolution は解決完了後の処理です。
// ゲームオーバー判定のあと、次の組ぷよを出してホールドを再び使えるようにします。
func finishResolution(state *Session) {
	state.Animating = false
	state.Clearing = nil
	state.resolver = nil

	if state.Grid.RowOccupied(puyo.GameOverRow) {
		state.gameOver()
		return
	}

	state.spawn(state.nextFromQueue())
	state.CanHold = true
}

// ExpireChain は連鎖表示のクールダウンが過ぎていれば連鎖数を0に戻します。
// より新しい連鎖で予定時刻が延びている場合は何もしません。
func ExpireChain(state *Session, now time.Time) bool {
	if state.Chain == 0 || state.chainResetAt.IsZero() || now.Before(state.chainResetAt) {
		return false
	}
	state.Chain = 0
	state.chainResetAt = time.Time{}
	return true
}

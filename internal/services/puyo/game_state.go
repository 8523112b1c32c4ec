package puyo

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/models/puyo"
)

// Phase はセッションのライフサイクル上の状態です。
type Phase string

const (
	PhaseTitle  Phase = "title"  // 開始前
	PhaseActive Phase = "active" // プレイ中
	PhasePaused Phase = "paused" // 一時停止中
	PhaseOver   Phase = "over"   // ゲームオーバー
)

// BestScoreStore はハイスコアの永続化先です。
// LoadBest はセッション作成時に1回だけ、SaveBest はスコアが記録を超えたときに呼ばれます。
type BestScoreStore interface {
	LoadBest(ctx context.Context) (int, error)
	SaveBest(ctx context.Context, score int) error
}

// CueKind は効果音の種類です。
type CueKind string

const (
	CueMove       CueKind = "move"
	CueRotate     CueKind = "rotate"
	CueHold       CueKind = "hold"
	CueChainClear CueKind = "chain_clear"
)

// Cue は効果音の通知です。Chain は CueChainClear のときのみ意味を持ちます。
type Cue struct {
	Kind  CueKind
	Chain int
}

// CueSink は効果音の通知先です。戻り値はなく、エンジンの状態には影響しません。
type CueSink interface {
	Cue(cue Cue)
}

// storeTimeout はハイスコアストアへの1回の呼び出しに許す時間です。
const storeTimeout = 2 * time.Second

// Session は1人用のぷよぷよのゲーム状態です。
// 1つのセッションは1つのゴルーチン（Driver）からのみ操作される前提で、排他制御は持ちません。
type Session struct {
	Phase        Phase         `json:"phase"`
	Grid         *puyo.Grid    `json:"grid"`          // 盤面
	CurrentPiece *puyo.Piece   `json:"current_piece"` // 操作中の組ぷよ（解決中はnil）
	Queue        []*puyo.Piece `json:"queue"`         // ネクスト
	HeldPiece    *puyo.Piece   `json:"held_piece"`    // ホールド中の組ぷよ（色のみ）
	CanHold      bool          `json:"can_hold"`      // この固定サイクルでホールド可能か
	Score        int           `json:"score"`
	BestScore    int           `json:"best_score"`
	Chain        int           `json:"chain"`         // 現在表示中の連鎖数
	FallInterval time.Duration `json:"fall_interval"` // 自動落下の間隔
	Animating    bool          `json:"animating"`     // 連鎖解決中
	Clearing     []puyo.Coord  `json:"clearing"`      // 直前のステップで消えたマス（演出用）

	settings      Settings
	randGenerator *rand.Rand // 組ぷよ生成用の乱数ジェネレータ
	store         BestScoreStore
	cues          CueSink
	now           func() time.Time
	resolver      *Resolver
	chainResetAt  time.Time // 連鎖表示を0に戻す時刻
}

// NewSession はタイトル状態のセッションを作成し、ハイスコアを1回読み込みます。
//
// Parameters:
//   settings : 盤面サイズや速度などの設定
//   store    : ハイスコアの保存先（nilなら保存しない）
//   cues     : 効果音の通知先（nilなら通知しない）
// Returns:
//   *Session: 初期化されたセッション
func NewSession(settings Settings, store BestScoreStore, cues CueSink) *Session {
	settings = settings.withDefaults()
	s := &Session{
		Phase:         PhaseTitle,
		Grid:          puyo.NewGrid(settings.Rows, settings.Cols),
		CanHold:       true,
		FallInterval:  settings.BaseFallInterval,
		settings:      settings,
		randGenerator: rand.New(rand.NewSource(time.Now().UnixNano())),
		store:         store,
		cues:          cues,
		now:           time.Now,
	}

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		best, err := store.LoadBest(ctx)
		if err != nil {
			log.Printf("[Session] Failed to load best score, starting from 0: %v", err)
		} else {
			s.BestScore = best
		}
	}
	return s
}

// Settings はセッション作成時に固定される設定値です。
func (s *Session) Settings() Settings { return s.settings }

// Start はゲームを開始（または再開始）します。タイトルかゲームオーバーのときのみ有効です。
//
// Returns:
//   bool: 開始した場合はtrue
func (s *Session) Start() bool {
	if s.Phase != PhaseTitle && s.Phase != PhaseOver {
		return false
	}

	s.Grid.Clear()
	s.Score = 0
	s.Chain = 0
	s.chainResetAt = time.Time{}
	s.FallInterval = s.settings.BaseFallInterval
	s.HeldPiece = nil
	s.CanHold = true
	s.Animating = false
	s.Clearing = nil
	s.resolver = nil
	s.CurrentPiece = nil

	s.Queue = s.Queue[:0]
	for i := 0; i < s.settings.Lookahead; i++ {
		s.Queue = append(s.Queue, s.generatePiece())
	}

	s.Phase = PhaseActive
	s.spawn(s.nextFromQueue())
	return true
}

// generatePiece は色がそれぞれ独立に一様分布で決まる新しい組ぷよを返します。
func (s *Session) generatePiece() *puyo.Piece {
	return &puyo.Piece{
		Color1: puyo.Color(s.randGenerator.Intn(s.settings.ColorCount) + 1),
		Color2: puyo.Color(s.randGenerator.Intn(s.settings.ColorCount) + 1),
	}
}

// nextFromQueue はネクストの先頭を取り出し、末尾に新しい組ぷよを1つ補充します。
func (s *Session) nextFromQueue() *puyo.Piece {
	if len(s.Queue) == 0 {
		s.Queue = append(s.Queue, s.generatePiece())
	}
	p := s.Queue[0]
	s.Queue = append(s.Queue[1:], s.generatePiece())
	return p
}

// spawn は組ぷよを出現位置に置きます。
// 出現位置で既に重なっている場合はゲームオーバーになります。
func (s *Session) spawn(p *puyo.Piece) {
	p.ResetToSpawn(s.settings.SpawnCol())
	s.CurrentPiece = p
	if !puyo.IsValidPlacement(s.Grid, p) {
		s.gameOver()
	}
}

// gameOver はゲームオーバーに遷移させます。
func (s *Session) gameOver() {
	s.Phase = PhaseOver
	s.Animating = false
	s.resolver = nil
	log.Printf("[Session] Game Over! Final Score: %d, Best: %d", s.Score, s.BestScore)
}

// addScore はスコアを加算し、ハイスコアを超えた場合は保存します。
func (s *Session) addScore(delta int) {
	if delta <= 0 {
		return
	}
	s.Score += delta
	if s.Score <= s.BestScore {
		return
	}
	s.BestScore = s.Score
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.SaveBest(ctx, s.BestScore); err != nil {
		log.Printf("[Session] Failed to save best score %d: %v", s.BestScore, err)
	}
}

func (s *Session) cue(kind CueKind, chain int) {
	if s.cues != nil {
		s.cues.Cue(Cue{Kind: kind, Chain: chain})
	}
}

// Paused は一時停止中かどうかを返します。
func (s *Session) Paused() bool { return s.Phase == PhasePaused }

// ChainResetAt は連鎖表示が0に戻る予定時刻を返します。予定がなければゼロ値です。
func (s *Session) ChainResetAt() time.Time { return s.chainResetAt }

// Snapshot は表示側に渡すための状態のコピーです。
// 表示側がこれを変更してもセッションには影響しません。
type Snapshot struct {
	Phase          Phase          `json:"phase"`
	Paused         bool           `json:"paused"`
	Rows           int            `json:"rows"`
	Cols           int            `json:"cols"`
	Grid           [][]puyo.Color `json:"grid"`
	CurrentPiece   *puyo.Piece    `json:"current_piece"`
	Queue          []puyo.Piece   `json:"queue"`
	HeldPiece      *puyo.Piece    `json:"held_piece,omitempty"`
	CanHold        bool           `json:"can_hold"`
	Score          int            `json:"score"`
	BestScore      int            `json:"best_score"`
	Chain          int            `json:"chain"`
	FallIntervalMs int64          `json:"fall_interval_ms"`
	Animating      bool           `json:"animating"`
	Clearing       []puyo.Coord   `json:"clearing,omitempty"`
}

// Snapshot は現在の状態のディープコピーを返します。
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:          s.Phase,
		Paused:         s.Phase == PhasePaused,
		Rows:           s.Grid.Rows(),
		Cols:           s.Grid.Cols(),
		Grid:           s.Grid.Clone().Cells,
		CanHold:        s.CanHold,
		Score:          s.Score,
		BestScore:      s.BestScore,
		Chain:          s.Chain,
		FallIntervalMs: s.FallInterval.Milliseconds(),
		Animating:      s.Animating,
	}
	if s.CurrentPiece != nil {
		snap.CurrentPiece = s.CurrentPiece.Clone()
	}
	if s.HeldPiece != nil {
		snap.HeldPiece = s.HeldPiece.Clone()
	}
	snap.Queue = make([]puyo.Piece, 0, len(s.Queue))
	for _, p := range s.Queue {
		snap.Queue = append(snap.Queue, *p)
	}
	if len(s.Clearing) > 0 {
		snap.Clearing = append([]puyo.Coord(nil), s.Clearing...)
	}
	return snap
}

// Clone はスナップショットのディープコピーを返します。
func (snap Snapshot) Clone() Snapshot {
	out := snap
	out.Grid = make([][]puyo.Color, len(snap.Grid))
	for r, row := range snap.Grid {
		out.Grid[r] = append([]puyo.Color(nil), row...)
	}
	if snap.CurrentPiece != nil {
		out.CurrentPiece = snap.CurrentPiece.Clone()
	}
	if snap.HeldPiece != nil {
		out.HeldPiece = snap.HeldPiece.Clone()
	}
	out.Queue = append([]puyo.Piece(nil), snap.Queue...)
	if len(snap.Clearing) > 0 {
		out.Clearing = append([]puyo.Coord(nil), snap.Clearing...)
	}
	return out
}

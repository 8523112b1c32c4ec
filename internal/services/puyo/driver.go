package puyo

import (
	"context"
	"log"
	"sync"
	"time"
)

// Renderer は状態遷移のたびにスナップショットを受け取る表示側です。
// Render は Driver のゴルーチンから呼ばれるため、長時間ブロックしてはいけません。
type Renderer interface {
	Render(snap Snapshot)
}

// RendererFunc は関数を Renderer として使うためのアダプタです。
type RendererFunc func(snap Snapshot)

// Render は f(snap) を呼び出します。
func (f RendererFunc) Render(snap Snapshot) { f(snap) }

// Driver は1つのセッションに対するすべての入力とタイマーを1本のイベントループで直列化します。
// セッションを変更するのはこのループだけで、他のゴルーチンは Snapshot を通して状態を読みます。
type Driver struct {
	session   *Session
	renderers []Renderer
	input     chan Command // プレイヤー操作のキュー

	mu     sync.RWMutex
	latest Snapshot // 最後に公開したスナップショット
}

// NewDriver はセッションを駆動する Driver を作成します。ループは Run で開始します。
//
// Parameters:
//   session   : 駆動するセッション（以後このDriver以外から変更しないこと）
//   renderers : 状態遷移ごとに通知する表示側
// Returns:
//   *Driver: 初期化されたDriver
func NewDriver(session *Session, renderers ...Renderer) *Driver {
	return &Driver{
		session:   session,
		renderers: renderers,
		input:     make(chan Command, 64), // 連打を考慮したバッファ
		latest:    session.Snapshot(),
	}
}

// Send はプレイヤー操作をキューに積みます。キューが一杯なら操作を捨てて false を返します。
func (d *Driver) Send(cmd Command) bool {
	select {
	case d.input <- cmd:
		return true
	default:
		log.Printf("[Driver] Input queue is full, dropping command %q", cmd)
		return false
	}
}

// Start はゲーム開始の操作をキューに積みます。
func (d *Driver) Start() bool {
	return d.Send(CommandStart)
}

// Snapshot は最後に公開された状態のコピーを返します。どのゴルーチンからでも呼べます。
func (d *Driver) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest.Clone()
}

// Run は Driver のメインイベントループです。
// 自動落下タイマー、加速ティッカー、連鎖解決のステップタイマー、連鎖表示のクールダウンタイマー、
// そしてプレイヤー操作を1つの select で処理し、状態が変わるたびに表示側へ通知します。
// ctx がキャンセルされると戻ります。
func (d *Driver) Run(ctx context.Context) {
	s := d.session
	st := s.settings

	fall := time.NewTimer(s.FallInterval)
	defer fall.Stop()
	speed := time.NewTicker(st.SpeedUpPeriod)
	defer speed.Stop()

	// 解決中・連鎖表示中のみ動かすタイマーは停止状態で作る
	step := time.NewTimer(st.ClearDelay)
	step.Stop()
	defer step.Stop()
	cooldown := time.NewTimer(st.ChainCooldown)
	cooldown.Stop()
	defer cooldown.Stop()

	// advance は連鎖解決を1ステップ進める。固定直後は待たずに最初の走査を行い、
	// 消去があったときだけ次のステップまで ClearDelay を空ける。
	advance := func() bool {
		res, ok := StepResolution(s)
		if !ok {
			return false
		}
		if res.Done {
			// 新しい組ぷよには落下間隔をまるごと与える
			fall.Reset(s.FallInterval)
		} else {
			step.Reset(st.ClearDelay)
			cooldown.Reset(time.Until(s.ChainResetAt()))
		}
		return true
	}

	d.publish()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Driver] Event loop stopped: %v", ctx.Err())
			return

		case cmd := <-d.input:
			wasAnimating := s.Animating
			if !ApplyPlayerInput(s, cmd) {
				continue // 受け付けられない操作は無視
			}
			if cmd == CommandStart {
				// 新しいゲームは初期速度から
				step.Stop()
				cooldown.Stop()
				fall.Reset(s.FallInterval)
				speed.Reset(st.SpeedUpPeriod)
			}
			if s.Animating && !wasAnimating {
				advance()
			}
			d.publish()

		case <-fall.C:
			wasAnimating := s.Animating
			if AutoFall(s) {
				if s.Animating && !wasAnimating {
					advance()
				}
				d.publish()
			}
			fall.Reset(s.FallInterval)

		case <-speed.C:
			if SpeedUp(s) {
				d.publish()
			}

		case <-step.C:
			if advance() {
				d.publish()
			}

		case <-cooldown.C:
			if ExpireChain(s, s.now()) {
				d.publish()
			} else if resetAt := s.ChainResetAt(); !resetAt.IsZero() {
				cooldown.Reset(time.Until(resetAt))
			}
		}
	}
}

// publish は現在の状態を公開し、登録されたすべての表示側に通知します。
// 各表示側は独立したコピーを受け取ります。
func (d *Driver) publish() {
	snap := d.session.Snapshot()
	d.mu.Lock()
	d.latest = snap
	d.mu.Unlock()

	for _, r := range d.renderers {
		r.Render(snap.Clone())
	}
}

package terminal

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

// CommandSink はキー入力から変換された操作を受け取ります。*puyo.Driver が満たします。
type CommandSink interface {
	Send(cmd puyo.Command) bool
}

// App は画面のキーイベントを読み、対応する操作を CommandSink に渡します。
type App struct {
	screen   tcell.Screen
	renderer *Renderer
	keys     *KeyMap
	sink     CommandSink
}

// NewApp は画面・描画・キーマップ・操作の送り先をつないだ App を作成します。keys が nil なら既定のキーマップを使います。
func NewApp(screen tcell.Screen, renderer *Renderer, keys *KeyMap, sink CommandSink) *App {
	if keys == nil {
		keys = DefaultKeyMap()
	}
	return &App{screen: screen, renderer: renderer, keys: keys, sink: sink}
}

// HandleEvent は端末イベントを1つ処理します。終了キーなら false を返します。
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if a.keys.IsQuit(ev) {
			return false
		}
		if cmd, ok := a.keys.Lookup(ev); ok {
			a.sink.Send(cmd)
		}
	case *tcell.EventResize:
		a.renderer.Redraw()
	}
	return true
}

// Run は終了キーが押されるか ctx がキャンセルされるまでイベントを処理します。
func (a *App) Run(ctx context.Context) {
	events := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return // 画面が終了した
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if !a.HandleEvent(ev) {
				return
			}
		}
	}
}

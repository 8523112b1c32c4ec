// Package terminal は tcell を使った端末クライアントです。
// セッションの状態を描画し、キー入力を Driver への操作に変換します。
package terminal

import (
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

// Binding は操作を起こす1つのキーです。Rune は Key が tcell.KeyRune のときだけ使います。
type Binding struct {
	Key  tcell.Key
	Rune rune
}

// KeyBinding は特殊キーの Binding を返します。
func KeyBinding(k tcell.Key) Binding { return Binding{Key: k} }

// RuneBinding は文字キーの Binding を返します。英字は大文字小文字を区別しません。
func RuneBinding(r rune) Binding { return Binding{Key: tcell.KeyRune, Rune: unicode.ToLower(r)} }

// KeyMap はキー入力を操作に対応づけます。1つの操作に複数のキーを割り当てられます。
type KeyMap struct {
	commands map[Binding]puyo.Command
	quit     map[Binding]bool
}

// DefaultKeyMap は矢印キー、WASD/ZX、vi風キーを割り当てたキーマップです。
func DefaultKeyMap() *KeyMap {
	km := NewKeyMap()
	km.Bind(puyo.CommandMoveLeft, KeyBinding(tcell.KeyLeft), RuneBinding('a'), RuneBinding('h'))
	km.Bind(puyo.CommandMoveRight, KeyBinding(tcell.KeyRight), RuneBinding('d'), RuneBinding('l'))
	km.Bind(puyo.CommandMoveDown, KeyBinding(tcell.KeyDown), RuneBinding('s'), RuneBinding('j'))
	km.Bind(puyo.CommandRotateRight, KeyBinding(tcell.KeyUp), RuneBinding('x'), RuneBinding('w'), RuneBinding('k'))
	km.Bind(puyo.CommandRotateLeft, RuneBinding('z'), RuneBinding('u'))
	km.Bind(puyo.CommandHold, RuneBinding('c'), RuneBinding(' '))
	km.Bind(puyo.CommandTogglePause, RuneBinding('p'), KeyBinding(tcell.KeyTab))
	km.Bind(puyo.CommandStart, KeyBinding(tcell.KeyEnter))
	km.BindQuit(RuneBinding('q'), KeyBinding(tcell.KeyEscape), KeyBinding(tcell.KeyCtrlC))
	return km
}

// NewKeyMap は空のキーマップを返します。
func NewKeyMap() *KeyMap {
	return &KeyMap{
		commands: make(map[Binding]puyo.Command),
		quit:     make(map[Binding]bool),
	}
}

// Bind は cmd にキーを割り当てます。他の操作に使われていたキーは付け替えます。
func (km *KeyMap) Bind(cmd puyo.Command, bindings ...Binding) {
	for _, b := range bindings {
		delete(km.quit, b)
		km.commands[b] = cmd
	}
}

// BindQuit は終了キーを割り当てます。
func (km *KeyMap) BindQuit(bindings ...Binding) {
	for _, b := range bindings {
		delete(km.commands, b)
		km.quit[b] = true
	}
}

// Lookup は ev に割り当てられた操作を返します。
func (km *KeyMap) Lookup(ev *tcell.EventKey) (puyo.Command, bool) {
	cmd, ok := km.commands[bindingOf(ev)]
	return cmd, ok
}

// IsQuit は ev が終了キーかどうかを返します。
func (km *KeyMap) IsQuit(ev *tcell.EventKey) bool {
	return km.quit[bindingOf(ev)]
}

// Bindings は cmd に割り当てられたキーを返します。
func (km *KeyMap) Bindings(cmd puyo.Command) []Binding {
	var out []Binding
	for b, c := range km.commands {
		if c == cmd {
			out = append(out, b)
		}
	}
	return out
}

func bindingOf(ev *tcell.EventKey) Binding {
	if ev.Key() == tcell.KeyRune {
		return RuneBinding(ev.Rune())
	}
	return KeyBinding(ev.Key())
}

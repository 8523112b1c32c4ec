// Package audio はゲーム中の出来事に合わせて短い合成音を鳴らします。
package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

const (
	sampleRate = beep.SampleRate(48000)
)

// SoundManager はゲームの音声全体を管理します。puyo.CueSink を満たします。
type SoundManager struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	rate        beep.SampleRate
	initialized bool
}

var _ puyo.CueSink = (*SoundManager)(nil)

// NewSoundManager は新しい SoundManager を作成します。
func NewSoundManager() *SoundManager {
	return &SoundManager{
		mixer: &beep.Mixer{},
		rate:  sampleRate,
	}
}

// Initialize はスピーカーを初期化してミキサーの再生を始めます。
func (sm *SoundManager) Initialize() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	// サンプルレートと100ms分のバッファでスピーカーを初期化
	if err := speaker.Init(sm.rate, sm.rate.N(time.Millisecond*100)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	speaker.Play(sm.mixer)
	sm.initialized = true
	return nil
}

// Cleanup は再生中の音を止めてスピーカーを閉じます。
func (sm *SoundManager) Cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}

	speaker.Lock()
	sm.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	sm.initialized = false
}

// Cue は出来事に対応する音を鳴らします。再生を待たずに戻り、
// Initialize が成功するまでは何もしません。
func (sm *SoundManager) Cue(cue puyo.Cue) {
	tone, ok := toneFor(cue)
	if !ok {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.initialized {
		return
	}

	speaker.Lock()
	sm.mixer.Add(toneStreamer(tone, sm.rate))
	speaker.Unlock()
}

package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

// 効果音ごとの高さと長さです。
const (
	moveFreq      = 330.0 // E4
	rotateFreq    = 440.0 // A4
	holdFreq      = 294.0 // D4
	chainBaseFreq = 523.25
	maxChainStep  = 12 // これ以上の連鎖では音程を上げない

	moveDuration   = 30 * time.Millisecond
	rotateDuration = 40 * time.Millisecond
	holdDuration   = 80 * time.Millisecond
	chainDuration  = 180 * time.Millisecond

	attack  = 5 * time.Millisecond
	release = 20 * time.Millisecond
)

// toneParams は1つの効果音の高さ・長さ・音量です。
type toneParams struct {
	freq     float64
	duration time.Duration
	volume   float64
}

// ChainFrequency は連鎖数に応じた消去音の周波数です。1連鎖ごとに全音（2半音）上がります。
func ChainFrequency(chain int) float64 {
	if chain < 1 {
		chain = 1
	}
	if chain > maxChainStep {
		chain = maxChainStep
	}
	return chainBaseFreq * math.Pow(2, float64(2*(chain-1))/12)
}

// toneFor は効果音の種類に対応する音を返します。未知の種類なら false です。
func toneFor(cue puyo.Cue) (toneParams, bool) {
	switch cue.Kind {
	case puyo.CueMove:
		return toneParams{freq: moveFreq, duration: moveDuration, volume: 0.15}, true
	case puyo.CueRotate:
		return toneParams{freq: rotateFreq, duration: rotateDuration, volume: 0.2}, true
	case puyo.CueHold:
		return toneParams{freq: holdFreq, duration: holdDuration, volume: 0.25}, true
	case puyo.CueChainClear:
		return toneParams{freq: ChainFrequency(cue.Chain), duration: chainDuration, volume: 0.35}, true
	}
	return toneParams{}, false
}

// sineTone は一定時間で終わる正弦波です。
type sineTone struct {
	freq     float64
	phase    float64
	position int
	total    int
	attack   int
	release  int
	rate     beep.SampleRate
}

// newSineTone は attack/release の音量変化つきの正弦波を作ります。
func newSineTone(freq float64, duration time.Duration, rate beep.SampleRate) *sineTone {
	return &sineTone{
		freq:    freq,
		total:   rate.N(duration),
		attack:  rate.N(attack),
		release: rate.N(release),
		rate:    rate,
	}
}

func (s *sineTone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.position >= s.total {
			return i, i > 0
		}

		vol := 1.0
		if s.attack > 0 && s.position < s.attack {
			vol = float64(s.position) / float64(s.attack)
		}
		if remaining := s.total - s.position; s.release > 0 && remaining < s.release {
			vol = float64(remaining) / float64(s.release)
		}

		val := vol * math.Sin(2*math.Pi*s.phase)
		samples[i][0] = val
		samples[i][1] = val

		s.phase += s.freq / float64(s.rate)
		s.phase -= math.Floor(s.phase) // [0, 1) に保つ
		s.position++
	}
	return len(samples), true
}

func (s *sineTone) Err() error { return nil }

// newVolume は線形の音量を beep の対数音量に変換します。0以下は無音です。
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// toneStreamer は効果音1つ分のストリーマーを作ります。
func toneStreamer(tone toneParams, rate beep.SampleRate) beep.Streamer {
	return newVolume(newSineTone(tone.freq, tone.duration, rate), tone.volume)
}

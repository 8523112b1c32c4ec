package audio

import (
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progate-hackathon-strawberry-flavor/PUYORIS-backend/internal/services/puyo"
)

func TestChainFrequencyRises(t *testing.T) {
	assert.InDelta(t, chainBaseFreq, ChainFrequency(1), 1e-9)
	assert.InDelta(t, chainBaseFreq, ChainFrequency(0), 1e-9)

	prev := ChainFrequency(1)
	for chain := 2; chain <= maxChainStep; chain++ {
		f := ChainFrequency(chain)
		assert.Greater(t, f, prev, "chain %d", chain)
		prev = f
	}
	assert.Equal(t, ChainFrequency(maxChainStep), ChainFrequency(maxChainStep+5))
	// 7連鎖で1オクターブ上
	assert.InDelta(t, chainBaseFreq*2, ChainFrequency(7), 1e-6)
}

func TestToneFor(t *testing.T) {
	for _, kind := range []puyo.CueKind{puyo.CueMove, puyo.CueRotate, puyo.CueHold, puyo.CueChainClear} {
		tone, ok := toneFor(puyo.Cue{Kind: kind, Chain: 1})
		require.True(t, ok, kind)
		assert.Greater(t, tone.freq, 0.0)
		assert.Greater(t, tone.duration, time.Duration(0))
	}
	_, ok := toneFor(puyo.Cue{Kind: "unknown"})
	assert.False(t, ok)
}

func TestSineToneLengthAndRange(t *testing.T) {
	rate := beep.SampleRate(44100)
	tone := newSineTone(440, 10*time.Millisecond, rate)

	total := 0
	buf := make([][2]float64, 128)
	for {
		n, ok := tone.Stream(buf)
		for i := 0; i < n; i++ {
			assert.LessOrEqual(t, math.Abs(buf[i][0]), 1.0)
			assert.Equal(t, buf[i][0], buf[i][1])
		}
		total += n
		if !ok {
			break
		}
	}
	assert.Equal(t, rate.N(10*time.Millisecond), total)
	assert.NoError(t, tone.Err())
}

func TestSineToneEnvelopeStartsSilent(t *testing.T) {
	tone := newSineTone(440, 50*time.Millisecond, beep.SampleRate(44100))
	buf := make([][2]float64, 1)
	_, ok := tone.Stream(buf)
	require.True(t, ok)
	assert.Equal(t, 0.0, buf[0][0])
}

func TestCueBeforeInitializeIsNoop(t *testing.T) {
	sm := NewSoundManager()
	assert.NotPanics(t, func() {
		sm.Cue(puyo.Cue{Kind: puyo.CueChainClear, Chain: 3})
		sm.Cleanup()
	})
}

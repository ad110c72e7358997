package playsource

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/playcore/pkg/clipmixer"
	"github.com/drgolem/playcore/pkg/model"
)

func constantModel(rate int, channels int, value float32, frames int) *model.MemoryDenseModel {
	chs := make([][]float32, channels)
	for c := range chs {
		buf := make([]float32, frames)
		for i := range buf {
			buf[i] = value
		}
		chs[c] = buf
	}
	return model.NewMemoryDenseModel(rate, 0, chs)
}

func monoOut(n int) [][]float32   { return [][]float32{make([]float32, n)} }
func stereoOut(n int) [][]float32 { return [][]float32{make([]float32, n), make([]float32, n)} }

// waitDrain blocks until the play source's ring buffer holds at least
// minFrames of readable audio, or a generous deadline passes.
func waitDrain(t *testing.T, s *AudioCallbackPlaySource, minFrames int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		vec := s.holder.Load()
		if len(vec.Channels) > 0 && vec.Channels[0].AvailableRead() >= uint64(minFrames) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSteadyPlaybackDeliversConstantValue(t *testing.T) {
	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()
	s.SetOutputChannelCount(1)

	dense := constantModel(44100, 1, 0.5, 44100)
	require.NoError(t, s.AddModel(dense))
	s.Play(0)
	waitDrain(t, s, 3*1024)

	for i := 0; i < 3; i++ {
		out := monoOut(1024)
		n := s.GetSourceSamples(1024, out)
		require.Equal(t, 1024, n)
		for _, v := range out[0] {
			assert.InDelta(t, 0.5, v, 1e-4)
		}
	}

	assert.Equal(t, uint64(3*1024), s.GetCurrentPlayingFrame())
}

func TestStopLimitsResidualOutputToOneBlock(t *testing.T) {
	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()
	s.SetOutputChannelCount(1)

	dense := constantModel(44100, 1, 0.5, 44100)
	require.NoError(t, s.AddModel(dense))
	s.Play(0)
	waitDrain(t, s, 1024)

	_ = s.GetSourceSamples(1024, monoOut(1024))

	s.Stop()
	assert.False(t, s.IsPlaying())

	// At most one more pull can still return full residual content; the one
	// after that must be silence.
	n1 := s.GetSourceSamples(1024, monoOut(1024))
	n2 := s.GetSourceSamples(1024, monoOut(1024))
	if n1 == 1024 {
		assert.Less(t, n2, 1024)
	} else {
		assert.Less(t, n1, 1024)
	}
}

func TestChannelMismatchMonoIsPannedCenter(t *testing.T) {
	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()

	stereo := constantModel(44100, 2, 0.1, 44100)
	mono := constantModel(44100, 1, 0.2, 44100)

	require.NoError(t, s.AddModel(stereo))
	require.NoError(t, s.AddModel(mono))

	s.Play(0)
	waitDrain(t, s, 1024)

	out := stereoOut(1024)
	n := s.GetSourceSamples(1024, out)
	require.Equal(t, 1024, n)
	assert.InDelta(t, out[0][10], out[1][10], 1e-4)
}

func TestSampleRateMismatchIsRejectedAndSignalled(t *testing.T) {
	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()

	var got MismatchEvent
	fired := false
	s.OnSampleRateMismatch(func(e MismatchEvent) {
		fired = true
		got = e
	})

	a := constantModel(44100, 1, 0.1, 100)
	b := constantModel(48000, 1, 0.1, 100)

	require.NoError(t, s.AddModel(a))
	err := s.AddModel(b)
	assert.ErrorIs(t, err, ErrSampleRateMismatch)
	assert.True(t, fired)
	assert.Equal(t, 48000, got.GotRate)
	assert.Equal(t, 44100, got.WantRate)
}

func sawtooth(rate int, freq float64, frames int) []float32 {
	buf := make([]float32, frames)
	period := float64(rate) / freq
	for i := range buf {
		frac := math.Mod(float64(i), period) / period
		buf[i] = float32(2*frac - 1)
	}
	return buf
}

func TestSlowdownHalvesFundamentalFrequency(t *testing.T) {
	const rate = 44100

	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()
	s.SetOutputChannelCount(1)

	dense := model.NewMemoryDenseModel(rate, 0, [][]float32{sawtooth(rate, 440, rate)})
	require.NoError(t, s.AddModel(dense))
	require.NoError(t, s.SetSlowdownFactor(2))
	s.Play(0)

	waitDrain(t, s, 2*1024)

	zeroCrossings := 0
	var prev float32
	haveSample := false
	totalFrames := 0
	for i := 0; i < 20; i++ {
		out := monoOut(1024)
		n := s.GetSourceSamples(1024, out)
		for j := 0; j < n; j++ {
			v := out[0][j]
			if haveSample && prev < 0 && v >= 0 {
				zeroCrossings++
			}
			prev = v
			haveSample = true
		}
		totalFrames += n
	}

	// A 220Hz fundamental over totalFrames/rate seconds should cross zero
	// roughly totalFrames/rate*220 times; allow generous tolerance given the
	// phase vocoder's approximate resynthesis and warm-up.
	seconds := float64(totalFrames) / rate
	expected := seconds * 220
	assert.Greater(t, zeroCrossings, 0)
	assert.Less(t, float64(zeroCrossings), expected*2+5)
}

func TestSparseClipNotesProduceBurstsAtInstants(t *testing.T) {
	params := model.NewStaticProvider()
	clipData := make([]float32, 11025)
	for i := range clipData {
		clipData[i] = 1
	}
	clip := clipmixer.New([][]float32{clipData}, 44100, 440, 44100)

	s := New(params, clip, nil)
	defer s.Close()
	s.SetOutputChannelCount(1)

	sparse := model.NewMemorySparseModel(44100, []model.Instant{
		{Frame: 0, Level: 1},
		{Frame: 22050, Level: 1},
		{Frame: 44100, Level: 1},
	})
	require.NoError(t, s.AddModel(sparse))
	s.Play(0)

	total := 55125 + 4096
	collected := make([]float32, 0, total)
	for len(collected) < total {
		out := monoOut(1024)
		n := s.GetSourceSamples(1024, out)
		collected = append(collected, out[0][:n]...)
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	assertNonSilent(t, collected, 0, 11025)
	assertSilent(t, collected, 11025, 22050)
	assertNonSilent(t, collected, 22050, 33075)
	assertSilent(t, collected, 33075, 44100)
	assertNonSilent(t, collected, 44100, 55125)
}

func assertNonSilent(t *testing.T, buf []float32, start, end int) {
	t.Helper()
	if end > len(buf) {
		end = len(buf)
	}
	var p float32
	for i := start; i < end; i++ {
		if v := buf[i]; v > p {
			p = v
		}
	}
	assert.Greater(t, p, float32(0.01))
}

func assertSilent(t *testing.T, buf []float32, start, end int) {
	t.Helper()
	if end > len(buf) {
		end = len(buf)
	}
	for i := start; i < end; i++ {
		assert.InDelta(t, 0, buf[i], 1e-3)
	}
}

func TestUnderrunRecoveryZeroPadsThenResumes(t *testing.T) {
	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()
	s.SetOutputChannelCount(1)

	dense := constantModel(44100, 1, 0.5, 44100)
	require.NoError(t, s.AddModel(dense))
	s.Play(0)
	waitDrain(t, s, 1024)

	// Pull faster than the fill thread can keep up, forcing an underrun.
	var lastShort bool
	for i := 0; i < 64; i++ {
		n := s.GetSourceSamples(1024, monoOut(1024))
		if n < 1024 {
			lastShort = true
			break
		}
	}
	require.True(t, lastShort)
	assert.Greater(t, s.metrics.underruns.Load(), uint64(0))

	waitDrain(t, s, 1024)
	out := monoOut(1024)
	n := s.GetSourceSamples(1024, out)
	require.Equal(t, 1024, n)
	assert.InDelta(t, 0.5, out[0][0], 1e-3)
}

func TestIdempotentRemoval(t *testing.T) {
	params := model.NewStaticProvider()
	s := New(params, nil, nil)
	defer s.Close()

	dense := constantModel(44100, 1, 0.5, 100)
	require.NoError(t, s.AddModel(dense))
	s.RemoveModel(dense)
	s.RemoveModel(dense)
	assert.Empty(t, s.models)
}

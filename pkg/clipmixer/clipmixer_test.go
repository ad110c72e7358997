package clipmixer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drgolem/playcore/pkg/panlaw"
)

func impulseClip(length int) [][]float32 {
	data := make([]float32, length)
	for i := range data {
		data[i] = 1
	}
	return [][]float32{data}
}

func rms(xs []float32) float64 {
	var sum float64
	for _, x := range xs {
		sum += float64(x) * float64(x)
	}
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func TestMixRendersSilenceWithNoNotes(t *testing.T) {
	cm := New(impulseClip(1000), 44100, 440, 44100)
	out := [][]float32{make([]float32, 128)}
	cm.Mix(out, 1, nil, nil)
	for _, v := range out[0] {
		assert.Equal(t, float32(0), v)
	}
}

func TestMixUnityRatioReproducesClipAfterFadeIn(t *testing.T) {
	cm := New(impulseClip(44100), 44100, 440, 44100)
	out := [][]float32{make([]float32, 512)}
	cm.Mix(out, 1, []NoteStart{{Level: 1, Pan: 0, Frequency: 440}}, nil)

	// past the ~5ms fade-in (~220 samples at 44100), output should approach 1.
	assert.InDelta(t, 1.0, out[0][400], 0.05)
}

func TestMixVoiceEndsWhenClipExhausted(t *testing.T) {
	cm := New(impulseClip(100), 44100, 440, 44100)
	out := [][]float32{make([]float32, 512)}
	cm.Mix(out, 1, []NoteStart{{Level: 1, Frequency: 440}}, nil)

	assert.Empty(t, cm.voices, "voice should be removed once its resampled duration elapses")
}

func TestMixNoteEndFadesOutRatherThanStoppingAbruptly(t *testing.T) {
	cm := New(impulseClip(44100), 44100, 440, 44100)
	ids := cm.Mix([][]float32{make([]float32, 256)}, 1, []NoteStart{{Level: 1, Frequency: 440}}, nil)
	voiceID := ids[0]

	out := [][]float32{make([]float32, 256)}
	cm.Mix(out, 1, nil, []NoteEnd{{VoiceID: voiceID}})

	// the fade-out should bring the tail of this block toward zero.
	assert.Less(t, out[0][len(out[0])-1], out[0][0])
}

func TestPanGainEqualPowerCenterIsEqualPerChannel(t *testing.T) {
	l := panlaw.Gain(0, 0, 2)
	r := panlaw.Gain(0, 1, 2)
	assert.InDelta(t, l, r, 1e-6)
	assert.InDelta(t, 1.0, float64(l*l+r*r), 1e-6)
}

func TestPolyphonyLimitEvictsOldestVoices(t *testing.T) {
	cm := New(impulseClip(44100), 44100, 440, 44100)
	cm.maxVoices = 4

	notes := make([]NoteStart, 10)
	for i := range notes {
		notes[i] = NoteStart{Level: 1, Frequency: 440}
	}
	out := [][]float32{make([]float32, 16)}
	ids := cm.Mix(out, 1, notes, nil)

	assert.LessOrEqual(t, len(cm.voices), 4)
	for i, v := range cm.voices {
		assert.Equal(t, ids[len(ids)-len(cm.voices)+i], v.id)
	}
}

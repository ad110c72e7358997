// Package clipmixer implements a polyphonic sampler: one preloaded PCM clip
// resampled and mixed at many simultaneous pitches and pan positions, used
// by AudioGenerator to render sparse and note models that have no dedicated
// plugin synth.
package clipmixer

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"

	"github.com/drgolem/playcore/pkg/panlaw"
	"github.com/drgolem/playcore/pkg/window"
)

const (
	fadeMillis        = 5
	defaultMaxVoices  = 64
)

// Voice is one currently-sounding note, resampling the shared clip at its
// own pitch, pan, and level.
type Voice struct {
	id         uint64
	phase      float64 // fractional read position into the clip, in clip samples
	ratio      float64 // clip samples per output frame
	level      float32
	pan        float32
	framesLeft int // output frames remaining before the resampled clip is exhausted
	fadeIn     []float32
	fadeOut    []float32
	fadeInPos  int
	fading     bool
	fadePos    int
	started    bool
	offset     int // frame within its first block at which the voice begins
}

// NoteStart describes a new voice to begin during the current block.
type NoteStart struct {
	FrameOffset int // offset within the block, [0, blockSize)
	Level       float32
	Pan         float32
	Frequency   float64 // Hz; ratio to clip's reference pitch determines resample ratio
}

// NoteEnd schedules an early fade-out of an already-playing voice, located by
// the stable ID Mix returned for it when the voice was started.
type NoteEnd struct {
	VoiceID     uint64
	FrameOffset int
}

// ClipMixer holds one loaded clip and the set of currently-playing voices.
type ClipMixer struct {
	clipData   [][]float32 // per-channel PCM, native rate
	clipRate   int
	clipF0     float64 // reference pitch, Hz
	outputRate int

	voices    []*Voice
	maxVoices int
	nextID    uint64
}

// LoadClip reads a WAV file's PCM into memory as the mixer's source clip.
// f0 is the reference pitch the clip was recorded at.
func LoadClip(path string, f0 float64) (*ClipMixer, error) {
	return loadClip(path, f0)
}

// New builds a ClipMixer directly from already-decoded clip data, primarily
// for tests.
func New(clipData [][]float32, clipRate int, f0 float64, outputRate int) *ClipMixer {
	return &ClipMixer{
		clipData:   clipData,
		clipRate:   clipRate,
		clipF0:     f0,
		outputRate: outputRate,
		maxVoices:  defaultMaxVoices,
	}
}

func loadClip(path string, f0 float64) (*ClipMixer, error) {
	r, err := newWavReaderFile(path)
	if err != nil {
		return nil, fmt.Errorf("clipmixer: load %s: %w", path, err)
	}
	defer r.Close()

	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("clipmixer: read format: %w", err)
	}

	channels := int(format.NumChannels)
	data := make([][]float32, channels)

	const chunk = 4096
	for {
		samples, err := r.ReadSamples(chunk)
		if len(samples) > 0 {
			for _, s := range samples {
				for ch := 0; ch < channels; ch++ {
					v := float32(s.Values[ch]) / 32768.0
					data[ch] = append(data[ch], v)
				}
			}
		}
		if err != nil {
			break
		}
	}

	return &ClipMixer{
		clipData:   data,
		clipRate:   int(format.SampleRate),
		clipF0:     f0,
		maxVoices:  defaultMaxVoices,
	}, nil
}

// SetOutputRate fixes the sample rate Mix will render at, which together
// with clipRate determines the resample ratio alongside pitch.
func (cm *ClipMixer) SetOutputRate(rate int) { cm.outputRate = rate }

// ReferencePitch returns the clip's reference pitch f0 in Hz, the frequency
// at which Mix plays it back at ratio 1.
func (cm *ClipMixer) ReferencePitch() float64 { return cm.clipF0 }

// ClipLength returns the clip length in native-rate samples.
func (cm *ClipMixer) ClipLength() int {
	if len(cm.clipData) == 0 {
		return 0
	}
	return len(cm.clipData[0])
}

// Mix renders one block of blockSize frames into outputs (one slice per
// channel, each len == blockSize), adding in place. newNotes start fresh
// voices at their FrameOffset, returned in the same order as stable IDs the
// caller can later pass back in a NoteEnd to fade that voice out.
// endingNotes schedule a fade-out on an already-playing voice by ID.
// gain scales every voice uniformly on top of its own level.
func (cm *ClipMixer) Mix(outputs [][]float32, gain float32, newNotes []NoteStart, endingNotes []NoteEnd) []uint64 {
	if len(outputs) == 0 || cm.outputRate == 0 || len(cm.clipData) == 0 {
		return nil
	}
	blockSize := len(outputs[0])
	channels := len(outputs)
	fadeLen := fadeMillis * cm.outputRate / 1000
	if fadeLen < 1 {
		fadeLen = 1
	}

	ids := make([]uint64, len(newNotes))
	for i, note := range newNotes {
		ids[i] = cm.startVoice(note, fadeLen)
	}
	for _, end := range endingNotes {
		if v := cm.findVoice(end.VoiceID); v != nil {
			v.fading = true
			v.fadeOut = window.CosineFadeOut(fadeLen)
			v.fadePos = 0
		}
	}

	kept := cm.voices[:0]
	for _, v := range cm.voices {
		cm.renderVoice(v, outputs, gain, blockSize, channels)
		if v.framesLeft > 0 && !(v.fading && v.fadePos >= len(v.fadeOut)) {
			kept = append(kept, v)
		}
	}
	cm.voices = kept

	if len(cm.voices) > cm.maxVoices {
		cm.voices = cm.voices[len(cm.voices)-cm.maxVoices:]
	}

	return ids
}

func (cm *ClipMixer) findVoice(id uint64) *Voice {
	for _, v := range cm.voices {
		if v.id == id {
			return v
		}
	}
	return nil
}

func (cm *ClipMixer) startVoice(note NoteStart, fadeLen int) uint64 {
	ratio := note.Frequency / cm.clipF0 * float64(cm.clipRate) / float64(cm.outputRate)
	if ratio <= 0 {
		ratio = 1
	}
	clipLen := cm.ClipLength()
	framesLeft := int(float64(clipLen) / ratio)

	cm.nextID++
	v := &Voice{
		id:         cm.nextID,
		ratio:      ratio,
		level:      note.Level,
		pan:        note.Pan,
		framesLeft: framesLeft,
		fadeIn:     window.CosineFadeIn(fadeLen),
		offset:     note.FrameOffset,
	}
	cm.voices = append(cm.voices, v)
	return v.id
}

func (cm *ClipMixer) renderVoice(v *Voice, outputs [][]float32, gain float32, blockSize, channels int) {
	clipLen := cm.ClipLength()
	start := v.offset
	v.offset = 0
	if start < 0 {
		start = 0
	}
	for i := start; i < blockSize && v.framesLeft > 0; i++ {
		idx := int(v.phase)
		frac := float32(v.phase - float64(idx))

		var env float32 = 1
		if !v.started && v.fadeInPos < len(v.fadeIn) {
			env = v.fadeIn[v.fadeInPos]
			v.fadeInPos++
		}
		if v.fadeInPos >= len(v.fadeIn) {
			v.started = true
		}
		if v.fading {
			if v.fadePos < len(v.fadeOut) {
				env *= v.fadeOut[v.fadePos]
				v.fadePos++
			} else {
				v.framesLeft = 0
				break
			}
		}

		for ch := 0; ch < channels; ch++ {
			srcCh := ch
			if srcCh >= len(cm.clipData) {
				srcCh = len(cm.clipData) - 1
			}
			s0 := sampleAt(cm.clipData[srcCh], idx, clipLen)
			s1 := sampleAt(cm.clipData[srcCh], idx+1, clipLen)
			sample := s0 + (s1-s0)*frac

			g := gain * v.level * panlaw.Gain(v.pan, ch, channels) * env
			outputs[ch][i] += sample * g
		}

		v.phase += v.ratio
		v.framesLeft--
	}
}

func sampleAt(data []float32, idx, length int) float32 {
	if idx < 0 || idx >= length {
		return 0
	}
	return data[idx]
}

// fileWavReader adapts *wav.Reader plus the backing *os.File into a single
// closable handle.
type fileWavReader struct {
	f *os.File
	r *wav.Reader
}

func newWavReaderFile(path string) (*fileWavReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileWavReader{f: f, r: wav.NewReader(f)}, nil
}

func (w *fileWavReader) Format() (*wav.WavFormat, error)         { return w.r.Format() }
func (w *fileWavReader) ReadSamples(n ...int) ([]wav.Sample, error) { return w.r.ReadSamples(n...) }
func (w *fileWavReader) Close() error                              { return w.f.Close() }

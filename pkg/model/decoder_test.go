package model

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder is a minimal types.AudioDecoder backed by a fixed int16 PCM
// buffer, decoding at most chunkCap frames per call to exercise
// DecoderDenseModel's incremental decode-ahead behavior.
type fakeDecoder struct {
	rate, channels, bits int
	pcm                  []int16 // interleaved
	pos                  int     // frames already handed out
	chunkCap             int
}

func (d *fakeDecoder) Open(string) error { return nil }
func (d *fakeDecoder) Close() error      { return nil }
func (d *fakeDecoder) GetFormat() (int, int, int) {
	return d.rate, d.channels, d.bits
}

func (d *fakeDecoder) DecodeSamples(frames int, audio []byte) (int, error) {
	total := len(d.pcm) / d.channels
	if d.pos >= total {
		return 0, io.EOF
	}
	if frames > d.chunkCap {
		frames = d.chunkCap
	}
	if d.pos+frames > total {
		frames = total - d.pos
	}
	for i := 0; i < frames*d.channels; i++ {
		v := d.pcm[d.pos*d.channels+i]
		off := i * 2
		audio[off] = byte(v)
		audio[off+1] = byte(v >> 8)
	}
	d.pos += frames
	return frames, nil
}

func TestDecoderDenseModelDecodesAheadAndCaches(t *testing.T) {
	dec := &fakeDecoder{rate: 44100, channels: 1, bits: 16, chunkCap: 3, pcm: []int16{100, 200, 300, 400, 500}}
	m, err := NewDecoderDenseModel(dec, 0)
	require.NoError(t, err)
	assert.Equal(t, KindDense, m.Kind())
	assert.Equal(t, 1, m.ChannelCount())

	out := make([]float32, 3)
	n, err := m.GetData(0, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 100.0/32768, out[0], 1e-6)
	assert.InDelta(t, 300.0/32768, out[2], 1e-6)

	out2 := make([]float32, 2)
	n, err = m.GetData(0, 3, out2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 400.0/32768, out2[0], 1e-6)
	assert.InDelta(t, 500.0/32768, out2[1], 1e-6)
}

func TestDecoderDenseModelPadsSilencePastEndOfStream(t *testing.T) {
	dec := &fakeDecoder{rate: 44100, channels: 1, bits: 16, chunkCap: 8, pcm: []int16{1000, 2000}}
	m, err := NewDecoderDenseModel(dec, 0)
	require.NoError(t, err)

	out := make([]float32, 5)
	n, err := m.GetData(0, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NotZero(t, out[0])
	assert.NotZero(t, out[1])
	assert.Zero(t, out[2])
	assert.Zero(t, out[3])
	assert.Zero(t, out[4])
	assert.Equal(t, uint64(2), m.EndFrame())
}

func TestDecoderDenseModelUnknownChannelIsSilent(t *testing.T) {
	dec := &fakeDecoder{rate: 44100, channels: 2, bits: 16, chunkCap: 4, pcm: []int16{10, 20, 30, 40}}
	m, err := NewDecoderDenseModel(dec, 0)
	require.NoError(t, err)

	out := make([]float32, 2)
	n, err := m.GetData(5, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0, 0}, out)
}

func TestNewDecoderDenseModelRejectsInvalidFormat(t *testing.T) {
	dec := &fakeDecoder{rate: 0, channels: 1, bits: 16}
	_, err := NewDecoderDenseModel(dec, 0)
	assert.Error(t, err)
}

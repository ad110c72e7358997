package offlineresample

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wav "github.com/youpy/go-wav"
)

type fakeDecoder struct {
	channels, bits int
	pcm            []int16 // interleaved
	pos            int
}

func (d *fakeDecoder) Open(string) error { return nil }
func (d *fakeDecoder) Close() error      { return nil }
func (d *fakeDecoder) GetFormat() (int, int, int) {
	return 44100, d.channels, d.bits
}

func (d *fakeDecoder) DecodeSamples(frames int, audio []byte) (int, error) {
	total := len(d.pcm) / d.channels
	if d.pos >= total {
		return 0, io.EOF
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

func TestDecodeAllReadsEntireStreamInChunks(t *testing.T) {
	dec := &fakeDecoder{channels: 2, bits: 16, pcm: []int16{1, 2, 3, 4, 5, 6}}
	data, frames, err := DecodeAll(dec, 2, 16)
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Len(t, data, 3*2*2)
}

func TestToMono16AveragesChannels(t *testing.T) {
	// Stereo: frame0 = (100, 300) -> avg 200; frame1 = (-100, 100) -> avg 0.
	data := make([]byte, 8)
	put16 := func(off int, v int16) {
		data[off] = byte(v)
		data[off+1] = byte(v >> 8)
	}
	put16(0, 100)
	put16(2, 300)
	put16(4, -100)
	put16(6, 100)

	mono := ToMono16(data, 2)
	require.Len(t, mono, 4)
	v0 := int16(uint16(mono[0]) | uint16(mono[1])<<8)
	v1 := int16(uint16(mono[2]) | uint16(mono[3])<<8)
	assert.Equal(t, int16(200), v0)
	assert.Equal(t, int16(0), v1)
}

func TestToMono16PassesThroughMono(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	assert.Equal(t, data, ToMono16(data, 1))
}

func TestWriteWAVRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	data := make([]byte, 8)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, WriteWAV(path, data, 2, 2, 44100, 16))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), format.NumChannels)
	assert.EqualValues(t, 44100, format.SampleRate)
	assert.Equal(t, uint16(16), format.BitsPerSample)
}

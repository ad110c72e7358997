package model

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/drgolem/playcore/pkg/types"
)

// decodeChunkFrames is how many frames DecoderDenseModel pulls from its
// decoder at a time while decoding ahead of the playback cursor.
const decodeChunkFrames = 4096

// DecoderDenseModel adapts a sequential types.AudioDecoder (WAV, FLAC, MP3,
// or a network stream decoder) into a DenseModel by decoding ahead of
// whatever frame range GetData has been asked for and caching the result as
// float32 per channel, so repeated or overlapping reads never re-decode
// already-seen audio.
type DecoderDenseModel struct {
	base
	dec      types.AudioDecoder
	channels int
	bits     int
	cached   [][]float32
	done     bool
}

// NewDecoderDenseModel wraps dec, which must already be open (see
// pkg/decoders.NewDecoder), as a DenseModel whose first decoded frame is
// model-time start.
func NewDecoderDenseModel(dec types.AudioDecoder, start uint64) (*DecoderDenseModel, error) {
	rate, channels, bits := dec.GetFormat()
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("model: decoder reports invalid format (rate=%d channels=%d)", rate, channels)
	}
	if bits != 8 && bits != 16 && bits != 24 && bits != 32 {
		return nil, fmt.Errorf("model: decoder reports unsupported bit depth %d", bits)
	}

	return &DecoderDenseModel{
		base:     base{sampleRate: rate, start: start},
		dec:      dec,
		channels: channels,
		bits:     bits,
		cached:   make([][]float32, channels),
	}, nil
}

func (m *DecoderDenseModel) Kind() Kind        { return KindDense }
func (m *DecoderDenseModel) ChannelCount() int { return m.channels }

// GetData reads up to len(out) samples of channel starting at frame start,
// decoding further ahead from the underlying decoder as needed. Frames past
// end of stream read as silence, matching MemoryDenseModel's behavior.
func (m *DecoderDenseModel) GetData(channel int, start uint64, out []float32) (int, error) {
	if channel < 0 || channel >= m.channels {
		zero(out)
		return len(out), nil
	}
	if start < m.start {
		zero(out)
		return len(out), nil
	}

	rel := start - m.start
	m.decodeUntil(rel + uint64(len(out)))

	cache := m.cached[channel]
	if rel >= uint64(len(cache)) {
		zero(out)
		return len(out), nil
	}

	n := copy(out, cache[rel:])
	zero(out[n:])
	return len(out), nil
}

func zero(out []float32) {
	for i := range out {
		out[i] = 0
	}
}

// decodeUntil ensures at least relFrames of PCM have been decoded and
// cached, or that the stream has ended.
func (m *DecoderDenseModel) decodeUntil(relFrames uint64) {
	bytesPerSample := m.bits / 8
	buf := make([]byte, decodeChunkFrames*m.channels*bytesPerSample)

	for !m.done && uint64(len(m.cached[0])) < relFrames {
		n, err := m.dec.DecodeSamples(decodeChunkFrames, buf)
		if n > 0 {
			m.appendFrames(buf[:n*m.channels*bytesPerSample], n)
		}
		if err != nil {
			if !isDecoderEOF(err) {
				slog.Warn("model: decoder stopped early", "error", err)
			}
			m.done = true
		} else if n == 0 {
			m.done = true
		}
	}
	if m.done {
		m.end = m.start + uint64(len(m.cached[0]))
	}
}

// isDecoderEOF reports whether err is this repo's informal end-of-stream
// signal rather than a genuine decode failure. The decoders in pkg/decoders
// don't expose a sentinel error, so callers match on message text.
func isDecoderEOF(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "eof") || strings.Contains(s, "done")
}

func (m *DecoderDenseModel) appendFrames(buf []byte, frames int) {
	bytesPerSample := m.bits / 8
	for ch := 0; ch < m.channels; ch++ {
		dst := make([]float32, frames)
		for i := 0; i < frames; i++ {
			idx := (i*m.channels + ch) * bytesPerSample
			dst[i] = decodePCMSample(buf[idx:idx+bytesPerSample], m.bits)
		}
		m.cached[ch] = append(m.cached[ch], dst...)
	}
}

// decodePCMSample reads one little-endian PCM sample of the given bit depth
// and normalizes it to [-1, 1].
func decodePCMSample(b []byte, bits int) float32 {
	switch bits {
	case 8:
		return (float32(b[0]) - 128) / 128
	case 16:
		v := int16(uint16(b[0]) | uint16(b[1])<<8)
		return float32(v) / 32768
	case 24:
		v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
		if v&0x800000 != 0 {
			v |= -(1 << 24)
		}
		return float32(v) / 8388608
	case 32:
		v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
		return float32(v) / 2147483648
	default:
		return 0
	}
}

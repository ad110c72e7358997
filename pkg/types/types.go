// Package types holds the shared decoder contract and ring-buffer error
// values that both pkg/decoders and pkg/ringbuffer depend on, so neither
// package needs to import the other.
package types

import "errors"

// AudioDecoder is the decode-ahead source DecoderDenseModel wraps: a
// sequential PCM producer for a file (WAV/FLAC/MP3) or a streamed source
// (pkg/decoders/stream). DecodeSamples is called repeatedly from the fill
// thread, never from the real-time callback.
type AudioDecoder interface {
	// Open opens an audio source for decoding.
	Open(fileName string) error

	// Close releases decoder resources.
	Close() error

	// GetFormat returns sample rate (Hz), channel count, and bits per sample
	// (8/16/24/32).
	GetFormat() (rate, channels, bitsPerSample int)

	// DecodeSamples decodes up to samples frames into audio, interleaved,
	// little-endian, sized samples * channels * (bitsPerSample/8) bytes.
	// Returns the number of frames actually decoded.
	DecodeSamples(samples int, audio []byte) (int, error)
}

// Ring-buffer errors returned by the generic ring buffer in pkg/ringbuffer,
// so callers can compare with errors.Is.
var (
	ErrInsufficientSpace = errors.New("insufficient space in ringbuffer")
	ErrInsufficientData  = errors.New("insufficient data in ringbuffer")
)

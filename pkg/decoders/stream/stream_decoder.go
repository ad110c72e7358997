package stream

import (
	"context"
	"sync"
)

// AudioFormat describes a streamed packet's audio format.
type AudioFormat struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// AudioPacket is a chunk of decoded audio handed to a StreamDecoder.
type AudioPacket struct {
	Audio        []byte
	SamplesCount int
	Format       AudioFormat
}

// AudioPacketProvider is any non-file audio source (network stream, live
// capture, synthetic buffer) a StreamDecoder can pull packets from.
type AudioPacketProvider interface {
	// ReadAudioPacket reads the next audio packet. Returns io.EOF when the
	// stream ends.
	ReadAudioPacket(ctx context.Context, samples int) (*AudioPacket, error)
}

// StreamDecoder adapts an AudioPacketProvider to types.AudioDecoder, letting
// DecoderDenseModel decode-ahead from a live or networked source the same
// way it does from a file.
type StreamDecoder struct {
	provider     AudioPacketProvider
	format       AudioFormat
	formatMx     sync.RWMutex
	formatChange chan AudioFormat
	ctx          context.Context
}

// NewStreamDecoder creates a decoder for streaming audio sources
func NewStreamDecoder(ctx context.Context, provider AudioPacketProvider, initialFormat AudioFormat) *StreamDecoder {
	return &StreamDecoder{
		provider:     provider,
		format:       initialFormat,
		formatChange: make(chan AudioFormat, 1),
		ctx:          ctx,
	}
}

// Open is a no-op: the provider is already live when NewStreamDecoder is
// called, so there is nothing left to open.
func (d *StreamDecoder) Open(fileName string) error {
	return nil
}

func (d *StreamDecoder) Close() error {
	return nil
}

func (d *StreamDecoder) GetFormat() (rate, channels, bitsPerSample int) {
	d.formatMx.RLock()
	defer d.formatMx.RUnlock()
	return d.format.SampleRate,
		d.format.Channels,
		d.format.BytesPerSample * 8
}

func (d *StreamDecoder) DecodeSamples(samples int, audio []byte) (int, error) {
	pkt, err := d.provider.ReadAudioPacket(d.ctx, samples)
	if err != nil {
		return 0, err
	}

	if pkt.SamplesCount == 0 {
		return 0, nil
	}

	if d.formatChanged(pkt.Format) {
		d.formatMx.Lock()
		d.format = pkt.Format
		d.formatMx.Unlock()

		select {
		case d.formatChange <- pkt.Format:
		default:
		}
	}

	bytesToCopy := pkt.SamplesCount * pkt.Format.Channels * pkt.Format.BytesPerSample
	copy(audio, pkt.Audio[:bytesToCopy])

	return pkt.SamplesCount, nil
}

func (d *StreamDecoder) formatChanged(newFormat AudioFormat) bool {
	d.formatMx.RLock()
	defer d.formatMx.RUnlock()

	return d.format.SampleRate != newFormat.SampleRate ||
		d.format.Channels != newFormat.Channels ||
		d.format.BytesPerSample != newFormat.BytesPerSample
}

// FormatChanges reports mid-stream format changes. DecoderDenseModel reads
// GetFormat once at construction, so a caller that needs to react to a
// reconnect/renegotiation must watch this channel and rebuild the model.
func (d *StreamDecoder) FormatChanges() <-chan AudioFormat {
	return d.formatChange
}

// Package flac adapts github.com/drgolem/go-flac into a types.AudioDecoder,
// one of the file-backed sources DecoderDenseModel decodes ahead from.
package flac

import (
	"fmt"

	goflac "github.com/drgolem/go-flac/flac"
)

// Decoder wraps goflac.FlacDecoder, always requesting 16-bit PCM output.
type Decoder struct {
	decoder  *goflac.FlacDecoder
	rate     int
	channels int
	bps      int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) GetFormat() (int, int, int) {
	return d.rate, d.channels, d.bps
}

func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("flac: decoder not opened")
	}
	return d.decoder.DecodeSamples(samples, audio)
}

func (d *Decoder) Open(fileName string) error {
	decoder, err := goflac.NewFlacFrameDecoder(16)
	if err != nil {
		return fmt.Errorf("flac: create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("flac: open %s: %w", fileName, err)
	}

	rate, channels, bps := decoder.GetFormat()

	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	d.bps = bps

	return nil
}

func (d *Decoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

// Rate, Channels, BitsPerSample expose GetFormat's components individually
// for callers (log fields, diagnostics) that want one value without
// destructuring the tuple.
func (d *Decoder) Rate() int          { return d.rate }
func (d *Decoder) Channels() int      { return d.channels }
func (d *Decoder) BitsPerSample() int { return d.bps }
func (d *Decoder) Encoding() int      { return d.bps }

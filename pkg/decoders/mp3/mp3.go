// Package mp3 adapts github.com/drgolem/go-mpg123 into a types.AudioDecoder,
// one of the file-backed sources DecoderDenseModel decodes ahead from.
package mp3

import (
	"fmt"

	"github.com/drgolem/go-mpg123/mpg123"
)

// Decoder wraps mpg123.Decoder. GetFormat's third value is mpg123's own
// encoding constant, which for the PCM formats this tree decodes equals
// bits per sample.
type Decoder struct {
	decoder  *mpg123.Decoder
	rate     int
	channels int
	encoding int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) GetFormat() (int, int, int) {
	return d.rate, d.channels, d.encoding
}

func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("mp3: decoder not opened")
	}
	return d.decoder.DecodeSamples(samples, audio)
}

func (d *Decoder) Open(fileName string) error {
	decoder, err := mpg123.NewDecoder("")
	if err != nil {
		return fmt.Errorf("mp3: create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("mp3: open %s: %w", fileName, err)
	}

	rate, channels, encoding := decoder.GetFormat()

	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	d.encoding = encoding

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

func (d *Decoder) Rate() int     { return d.rate }
func (d *Decoder) Channels() int { return d.channels }
func (d *Decoder) Encoding() int { return d.encoding }

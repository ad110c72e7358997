// Package offlineresample converts a fully-decoded PCM buffer between
// sample rates using SoXR, for the batch "transform a file on disk" path.
// This is deliberately separate from pkg/playsource's RT-safe linear
// resampler: SoXR allocates and blocks, which is fine here because nothing
// in this package ever runs from an audio callback.
package offlineresample

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	wav "github.com/youpy/go-wav"
	soxr "github.com/zaf/resample"

	"github.com/drgolem/playcore/pkg/types"
)

// decodeChunkFrames is how many frames DecodeAll pulls from the decoder per
// DecodeSamples call.
const decodeChunkFrames = 4096

// DecodeAll reads every frame dec has to offer into one contiguous PCM byte
// buffer, returning the frame count alongside it.
func DecodeAll(dec types.AudioDecoder, channels, bitsPerSample int) ([]byte, int, error) {
	bytesPerSample := bitsPerSample / 8
	bufferSize := decodeChunkFrames * channels * bytesPerSample

	buffer := make([]byte, bufferSize)
	audioData := make([]byte, 0, bufferSize*10)
	totalFrames := 0

	for {
		framesRead, err := dec.DecodeSamples(decodeChunkFrames, buffer)
		if framesRead > 0 {
			bytesRead := framesRead * channels * bytesPerSample
			audioData = append(audioData, buffer[:bytesRead]...)
			totalFrames += framesRead
		}

		if err != nil {
			if isEOF(err) {
				break
			}
			return nil, 0, fmt.Errorf("offlineresample: decode: %w", err)
		}
		if framesRead == 0 {
			break
		}
	}

	return audioData, totalFrames, nil
}

func isEOF(err error) bool {
	s := err.Error()
	return strings.Contains(s, "EOF") || strings.Contains(s, "done")
}

// Resample converts 16-bit PCM audioData from fromRate to toRate using
// SoXR's high-quality resampler. A no-op when the rates already match.
func Resample(audioData []byte, fromRate, toRate, channels int) ([]byte, error) {
	if fromRate == toRate {
		return audioData, nil
	}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)

	resampler, err := soxr.New(w, float64(fromRate), float64(toRate), channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("offlineresample: create resampler: %w", err)
	}

	if _, err := resampler.Write(audioData); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("offlineresample: write: %w", err)
	}
	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("offlineresample: close resampler: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("offlineresample: flush: %w", err)
	}

	return out.Bytes(), nil
}

// ToMono16 averages channels-many interleaved 16-bit channels down to one.
func ToMono16(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}

	mono := make([]byte, 0, len(data)/channels)
	frameBytes := 2 * channels

	for i := 0; i+frameBytes <= len(data); i += frameBytes {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			off := i + ch*2
			sample := int16(uint16(data[off]) | uint16(data[off+1])<<8)
			sum += int32(sample)
		}
		avg := int16(sum / int32(channels))
		mono = append(mono, byte(avg&0xFF), byte((avg>>8)&0xFF))
	}

	return mono
}

// WriteWAV writes a 16-bit-or-wider PCM buffer as a WAV file.
func WriteWAV(fileName string, audioData []byte, numSamples uint32, numChannels uint16, sampleRate uint32, bitsPerSample uint16) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("offlineresample: create %s: %w", fileName, err)
	}
	defer f.Close()

	w := wav.NewWriter(f, numSamples, numChannels, sampleRate, bitsPerSample)
	if _, err := w.Write(audioData); err != nil {
		return fmt.Errorf("offlineresample: write %s: %w", fileName, err)
	}
	return nil
}

// Options configures a Transform run.
type Options struct {
	TargetSampleRate int
	Mono             bool
	OutPath          string
}

// Transform decodes an input file fully, resamples it to opts's target rate
// (optionally downmixing to mono), and writes the result as a WAV file.
func Transform(dec types.AudioDecoder, opts Options) (frames int, err error) {
	rate, channels, bits := dec.GetFormat()

	audioData, totalFrames, err := DecodeAll(dec, channels, bits)
	if err != nil {
		return 0, err
	}

	resampled, err := Resample(audioData, rate, opts.TargetSampleRate, channels)
	if err != nil {
		return 0, err
	}

	bytesPerSample := bits / 8
	outChannels := channels
	outData := resampled
	if opts.Mono && channels > 1 {
		outData = ToMono16(resampled, channels)
		outChannels = 1
	}

	outFrames := len(outData) / (outChannels * bytesPerSample)
	if err := WriteWAV(opts.OutPath, outData, uint32(outFrames), uint16(outChannels), uint32(opts.TargetSampleRate), uint16(bits)); err != nil {
		return 0, err
	}

	return totalFrames, nil
}

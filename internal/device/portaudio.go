// Package device wires AudioCallbackPlaySource.GetSourceSamples to an
// actual sound card via PortAudio.
package device

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/playcore/pkg/playsource"
)

// Device owns an open PortAudio output stream driven by a play source's
// real-time callback.
type Device struct {
	stream          *portaudio.PaStream
	play            *playsource.AudioCallbackPlaySource
	channels        int
	framesPerBuffer int
	scratch         [][]float32 // RT-owned, sized once in Open
}

// Config describes the PortAudio output stream to open.
type Config struct {
	DeviceIndex     int
	Channels        int
	SampleRate      int
	FramesPerBuffer int
}

// New builds a Device bound to play. Call Open to start the stream.
func New(play *playsource.AudioCallbackPlaySource, cfg Config) *Device {
	return &Device{
		play:            play,
		channels:        cfg.Channels,
		framesPerBuffer: cfg.FramesPerBuffer,
		stream: &portaudio.PaStream{
			OutputParameters: &portaudio.PaStreamParameters{
				DeviceIndex:  cfg.DeviceIndex,
				ChannelCount: cfg.Channels,
				SampleFormat: portaudio.SampleFmtFloat32,
			},
			SampleRate: float64(cfg.SampleRate),
		},
	}
}

// Open opens and starts the output stream. The play source should already
// be configured with a matching SetOutputChannelCount/SetTargetSampleRate
// and be playing before frames are expected.
func (d *Device) Open() error {
	d.scratch = make([][]float32, d.channels)
	for c := range d.scratch {
		d.scratch[c] = make([]float32, d.framesPerBuffer)
	}

	if err := d.stream.OpenCallback(d.framesPerBuffer, d.audioCallback); err != nil {
		return fmt.Errorf("device: open stream: %w", err)
	}
	if err := d.stream.StartStream(); err != nil {
		return fmt.Errorf("device: start stream: %w", err)
	}
	return nil
}

// Close stops and closes the output stream.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.StopStream(); err != nil {
		return fmt.Errorf("device: stop stream: %w", err)
	}
	return d.stream.CloseCallback()
}

// audioCallback runs on PortAudio's real-time thread. It must not allocate,
// lock, or block; GetSourceSamples and the byte encoding below satisfy that.
func (d *Device) audioCallback(input, output []byte, frameCount uint, timeInfo *portaudio.StreamCallbackTimeInfo, statusFlags portaudio.StreamCallbackFlags) portaudio.StreamCallbackResult {
	n := int(frameCount)
	if n > d.framesPerBuffer {
		n = d.framesPerBuffer
	}

	outputs := d.scratch
	for c := range outputs {
		outputs[c] = outputs[c][:n]
	}

	d.play.GetSourceSamples(n, outputs)

	needed := n * d.channels * 4
	if needed > len(output) {
		needed = len(output)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < d.channels; c++ {
			off := (i*d.channels + c) * 4
			if off+4 > needed {
				continue
			}
			binary.LittleEndian.PutUint32(output[off:off+4], math.Float32bits(outputs[c][i]))
		}
	}
	if needed < len(output) {
		clear(output[needed:])
	}

	return portaudio.Continue
}

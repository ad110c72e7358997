// Package plugin defines the optional real-time synth host boundary:
// AudioGenerator consults a Host to render note/sparse models through an
// external instrument when one is configured, falling back to the built-in
// ClipMixer otherwise. The playback core never depends on a concrete plugin
// implementation, only this interface.
package plugin

import "errors"

// errNoPlugin is returned by NopHost.Load to signal "no plugin available",
// letting callers fall back to the built-in ClipMixer.
var errNoPlugin = errors.New("plugin: no host configured")

// Event is a single scheduled note-on/note-off delivered to a Host for one
// processing block.
type Event struct {
	FrameOffset int // offset within the block, [0, blockSize)
	Pitch       int
	Velocity    float32
	NoteOn      bool
}

// Host renders plugin audio for a loaded instrument/program. Implementations
// must not block or allocate inside Run, matching the real-time constraints
// the playback core itself observes.
type Host interface {
	// Load prepares instrument id/program for rendering. May block; always
	// called from the fill thread, never from Run.
	Load(id string, program int) error

	// Run renders blockSize frames per channel into outputs (one slice per
	// channel, each len == blockSize), applying events scheduled within the
	// block. Returns false if id/program was never successfully Loaded.
	Run(blockSize int, events []Event, outputs [][]float32) (bool, error)
}

// NopHost is the default Host: Load always fails so callers fall back to the
// built-in ClipMixer, and Run renders silence. Plugin-host absence is
// non-fatal; NopHost is that absence made concrete.
type NopHost struct{}

func (NopHost) Load(id string, program int) error { return errNoPlugin }

func (NopHost) Run(blockSize int, events []Event, outputs [][]float32) (bool, error) {
	for _, ch := range outputs {
		for i := range ch {
			ch[i] = 0
		}
	}
	return false, nil
}

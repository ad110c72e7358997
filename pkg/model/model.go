// Package model defines the abstract data sources the playback core mixes
// and the per-model playback parameters that control gain, pan, mute, and
// plugin routing. The core only ever holds these as externally-owned
// references — it never allocates or frees a Model.
package model

import "sync"

// Kind tags which capability interface a Model additionally satisfies,
// replacing a deep class hierarchy with a single small dispatch tag plus
// capability interfaces.
type Kind int

const (
	// KindDense models expose multi-channel PCM addressable by frame range.
	KindDense Kind = iota
	// KindSparse models expose time-stamped, zero-duration instants.
	KindSparse
	// KindNote models expose time-stamped pitched notes with duration.
	KindNote
)

func (k Kind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindSparse:
		return "sparse"
	case KindNote:
		return "note"
	default:
		return "unknown"
	}
}

// Model is the capability every variant shares.
type Model interface {
	Kind() Kind
	SampleRate() int
	StartFrame() uint64
	EndFrame() uint64
}

// DenseModel is a multi-channel PCM source addressable by frame range.
type DenseModel interface {
	Model
	ChannelCount() int
	// GetData reads up to len(out) samples of channel starting at frame
	// start into out, returning the number of samples actually read.
	GetData(channel int, start uint64, out []float32) (int, error)
}

// Instant is a zero-duration time-stamped event in a sparse model.
type Instant struct {
	Frame uint64
	Level float32 // relative amplitude/velocity, 0..1
}

// SparseModel exposes time-stamped instants over a frame range.
type SparseModel interface {
	Model
	GetPoints(start, end uint64) []Instant
}

// Note is a time-stamped pitched note with duration and velocity.
type Note struct {
	Frame    uint64
	Duration uint64
	Pitch    int // MIDI note number
	Velocity float32
}

// NoteModel exposes time-stamped pitched notes over a frame range.
type NoteModel interface {
	Model
	GetNotes(start, end uint64) []Note
}

// PlayParameters are the per-model mix controls.
type PlayParameters struct {
	Gain     float32 // linear, >= 0
	Pan      float32 // [-1, 1]
	Mute     bool
	PluginID string // empty means "no plugin"
	Program  int
}

// DefaultPlayParameters returns unity gain, centered pan, unmuted, no plugin.
func DefaultPlayParameters() PlayParameters {
	return PlayParameters{Gain: 1, Pan: 0}
}

// ParametersProvider maps a Model to its current PlayParameters and lets
// callers subscribe to changes, replacing Qt signal/slot coupling with an
// explicit callback list.
type ParametersProvider interface {
	Get(m Model) PlayParameters
	Subscribe(fn func(m Model)) (unsubscribe func())
}

// StaticProvider is a ParametersProvider backed by a plain map, suitable for
// tests and simple hosts. It is safe for concurrent use.
type StaticProvider struct {
	mu       sync.Mutex
	params   map[Model]PlayParameters
	fallback PlayParameters
	subs     []func(Model)
}

// NewStaticProvider creates a provider where models default to
// DefaultPlayParameters() until explicitly set.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		params:   make(map[Model]PlayParameters),
		fallback: DefaultPlayParameters(),
	}
}

// Get returns the current parameters for m, or the default if never set.
func (p *StaticProvider) Get(m Model) PlayParameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pp, ok := p.params[m]; ok {
		return pp
	}
	return p.fallback
}

// Set installs new parameters for m and notifies subscribers.
func (p *StaticProvider) Set(m Model, pp PlayParameters) {
	p.mu.Lock()
	p.params[m] = pp
	subs := append([]func(Model){}, p.subs...)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(m)
	}
}

// Subscribe registers fn to be called whenever Set changes a model's
// parameters. The returned function removes the subscription.
func (p *StaticProvider) Subscribe(fn func(m Model)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
	idx := len(p.subs) - 1
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if idx < len(p.subs) {
			p.subs[idx] = func(Model) {}
		}
	}
}

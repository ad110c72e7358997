// Package ringbufvec groups one ring buffer per output channel behind a
// swappable handle, so the fill thread can install a freshly-sized buffer
// set on reconfigure (block size, channel count, or slowdown factor change)
// without the real-time callback ever observing a half-swapped state.
package ringbufvec

import (
	"sync/atomic"

	"github.com/drgolem/playcore/pkg/ringbuffer"
	"github.com/drgolem/playcore/pkg/scavenger"
)

// Vector is one RingBuffer[float32] per channel, swapped as a unit.
type Vector struct {
	Channels []*ringbuffer.RingBuffer[float32]
}

// New allocates a Vector with the given channel count, each ring buffer
// sized to at least capacity frames.
func New(channels int, capacity uint64) *Vector {
	v := &Vector{Channels: make([]*ringbuffer.RingBuffer[float32], channels)}
	for i := range v.Channels {
		v.Channels[i] = ringbuffer.New[float32](capacity)
	}
	return v
}

// Holder owns the single live *Vector the real-time callback reads, allowing
// the fill thread to atomically replace it. Old vectors are handed to a
// Scavenger instead of being freed immediately, since a concurrent callback
// invocation may still hold a reference captured before the swap.
type Holder struct {
	active atomic.Pointer[Vector]
	scav   *scavenger.Scavenger[*Vector]
}

// NewHolder creates a Holder with scav used to defer reclamation of replaced
// vectors. scav may be nil, in which case old vectors are dropped immediately
// (acceptable only when the caller guarantees no concurrent reader).
func NewHolder(initial *Vector, scav *scavenger.Scavenger[*Vector]) *Holder {
	h := &Holder{scav: scav}
	h.active.Store(initial)
	return h
}

// Load returns the currently active Vector. Safe to call from the real-time
// callback: it is a single atomic pointer load, no locks.
func (h *Holder) Load() *Vector {
	return h.active.Load()
}

// Swap installs next as the active Vector and defers reclamation of the
// previous one.
func (h *Holder) Swap(next *Vector) {
	prev := h.active.Swap(next)

	if prev != nil {
		if h.scav != nil {
			h.scav.Claim(prev)
		}
	}
}

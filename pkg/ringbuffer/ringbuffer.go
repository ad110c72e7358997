// Package ringbuffer implements a lock-free single-producer single-consumer
// queue used wherever a real-time thread must exchange data with a
// non-real-time thread without taking a lock.
package ringbuffer

import (
	"sync/atomic"

	"github.com/drgolem/playcore/pkg/types"
)

// Re-export common ringbuffer errors for backwards compatibility
var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

// RingBuffer is a lock-free SPSC ring buffer over a fixed power-of-two
// capacity of elements of type T. Write index and read index are
// monotonically increasing atomics; no locks are taken internally.
//
// Thread safety requirements:
//   - Write (and the write-only helpers) must only be called by the producer
//   - Read/Peek/Skip/ReadSlices/PeekContiguous/Consume must only be called
//     by the consumer
//
// The two sides may run concurrently with each other.
type RingBuffer[T any] struct {
	buffer   []T
	size     uint64 // must be power of 2
	mask     uint64 // size - 1, for efficient modulo
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a new ring buffer able to hold at least capacity elements.
// Capacity will be rounded up to the next power of 2 for efficiency.
func New[T any](capacity uint64) *RingBuffer[T] {
	// Round up to next power of 2
	capacity = nextPowerOf2(capacity)

	return &RingBuffer[T]{
		buffer: make([]T, capacity),
		size:   capacity,
		mask:   capacity - 1,
	}
}

// Write writes src to the ring buffer.
//
// Unlike some io.Writer implementations, this method does not perform partial writes.
// It will either write all data successfully or return ErrInsufficientSpace without
// writing any data.
//
// This method must only be called by the producer thread.
func (rb *RingBuffer[T]) Write(src []T) (int, error) {
	dataLen := uint64(len(src))
	if dataLen == 0 {
		return 0, nil
	}

	available := rb.AvailableWrite()
	if dataLen > available {
		return 0, ErrInsufficientSpace
	}

	writePos := rb.writePos.Load()

	// Calculate the actual position in the buffer
	start := writePos & rb.mask
	end := (writePos + dataLen) & rb.mask

	if end > start {
		// Single contiguous write
		copy(rb.buffer[start:end], src)
	} else {
		// Write wraps around the buffer
		firstChunk := rb.size - start
		copy(rb.buffer[start:], src[:firstChunk])
		copy(rb.buffer[:end], src[firstChunk:])
	}

	// Atomic update of write position
	rb.writePos.Store(writePos + dataLen)

	return int(dataLen), nil
}

// Read reads up to len(dst) elements from the ring buffer into dst.
//
// Read will read as many elements as are available, up to len(dst). If fewer
// are available than requested, it reads what's available and returns the
// count without error. If the buffer is empty, it returns (0, ErrInsufficientData).
//
// This method must only be called by the consumer thread.
func (rb *RingBuffer[T]) Read(dst []T) (int, error) {
	n, err := rb.Peek(dst)
	if err != nil {
		return 0, err
	}
	_ = rb.Skip(uint64(n))
	return n, nil
}

// Peek copies up to len(dst) elements into dst without advancing the read
// position. This method must only be called by the consumer thread.
func (rb *RingBuffer[T]) Peek(dst []T) (int, error) {
	dataLen := uint64(len(dst))
	if dataLen == 0 {
		return 0, nil
	}

	available := rb.AvailableRead()
	if available == 0 {
		return 0, ErrInsufficientData
	}

	// Read only what's available
	toRead := min(dataLen, available)

	readPos := rb.readPos.Load()

	// Calculate the actual position in the buffer
	start := readPos & rb.mask
	end := (readPos + toRead) & rb.mask

	if end > start {
		// Single contiguous read
		copy(dst[:toRead], rb.buffer[start:end])
	} else {
		// Read wraps around the buffer
		firstChunk := rb.size - start
		copy(dst[:firstChunk], rb.buffer[start:])
		copy(dst[firstChunk:toRead], rb.buffer[:end])
	}

	return int(toRead), nil
}

// Skip advances the read position by n elements without copying, for use
// after ReadSlices/PeekContiguous. This method must only be called by the
// consumer thread.
func (rb *RingBuffer[T]) Skip(n uint64) error {
	if n == 0 {
		return nil
	}
	available := rb.AvailableRead()
	if n > available {
		return ErrInsufficientData
	}
	rb.readPos.Store(rb.readPos.Load() + n)
	return nil
}

// AvailableWrite returns the number of elements available for writing.
// One slot is always reserved so a full buffer can be distinguished from an
// empty one.
func (rb *RingBuffer[T]) AvailableWrite() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return rb.size - 1 - (writePos - readPos)
}

// AvailableRead returns the number of elements available for reading
func (rb *RingBuffer[T]) AvailableRead() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return writePos - readPos
}

// Size returns the total capacity of the ring buffer
func (rb *RingBuffer[T]) Size() uint64 {
	return rb.size
}

// ReadSlices returns one or two slices that provide zero-copy access to the available data.
// The data may be split into two slices if it wraps around the ring buffer.
// After processing the data, call Consume() to advance the read position.
// This should only be called by the consumer thread.
//
// Returns:
//   - first: The first (or only) slice of available data
//   - second: The second slice if data wraps around, nil otherwise
//   - total: Total number of elements available across both slices
func (rb *RingBuffer[T]) ReadSlices() (first, second []T, total uint64) {
	available := rb.AvailableRead()
	if available == 0 {
		return nil, nil, 0
	}

	readPos := rb.readPos.Load()
	start := readPos & rb.mask
	end := (readPos + available) & rb.mask

	if end > start {
		// Data is contiguous
		return rb.buffer[start:end], nil, available
	}

	// Data wraps around
	firstChunk := rb.buffer[start:]
	secondChunk := rb.buffer[:end]
	return firstChunk, secondChunk, available
}

// PeekContiguous returns a slice providing zero-copy access to the contiguous
// portion of available data. This may be less than the total available data
// if the data wraps around the buffer.
// After processing, call Consume() to advance the read position.
// This should only be called by the consumer thread.
func (rb *RingBuffer[T]) PeekContiguous() []T {
	available := rb.AvailableRead()
	if available == 0 {
		return nil
	}

	readPos := rb.readPos.Load()
	start := readPos & rb.mask
	end := (readPos + available) & rb.mask

	if end > start {
		// All data is contiguous
		return rb.buffer[start:end]
	}

	// Data wraps around, return only the first contiguous chunk
	return rb.buffer[start:]
}

// Consume advances the read position by n elements without copying data.
// This is used in conjunction with ReadSlices() or PeekContiguous() for zero-copy reads.
// Returns an error if trying to consume more elements than are available.
// This should only be called by the consumer thread.
func (rb *RingBuffer[T]) Consume(n uint64) error {
	return rb.Skip(n)
}

// Reset clears the ring buffer by resetting read and write positions
func (rb *RingBuffer[T]) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

// nextPowerOf2 rounds up to the next power of 2
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

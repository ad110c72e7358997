package ringbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsToPowerOf2(t *testing.T) {
	tests := []struct {
		input    uint64
		expected uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{100, 128},
		{1024, 1024},
	}

	for _, tt := range tests {
		rb := New[float32](tt.input)
		assert.Equal(t, tt.expected, rb.Size())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rb := New[float32](16)

	src := []float32{1, 2, 3, 4, 5}
	n, err := rb.Write(src)
	require.NoError(t, err)
	require.Equal(t, len(src), n)

	dst := make([]float32, len(src))
	n, err = rb.Read(dst)
	require.NoError(t, err)
	require.Equal(t, len(src), n)
	assert.Equal(t, src, dst)
}

func TestConservationInvariant(t *testing.T) {
	rb := New[float32](16)
	assert.Equal(t, rb.Size()-1, rb.AvailableWrite())
	assert.Equal(t, uint64(0), rb.AvailableRead())
	assert.Equal(t, rb.Size()-1, rb.AvailableRead()+rb.AvailableWrite())

	_, err := rb.Write(make([]float32, 8))
	require.NoError(t, err)
	assert.Equal(t, rb.Size()-1, rb.AvailableRead()+rb.AvailableWrite())
}

func TestWriteInsufficientSpace(t *testing.T) {
	rb := New[float32](4) // capacity 4, usable 3
	_, err := rb.Write(make([]float32, 4))
	assert.ErrorIs(t, err, ErrInsufficientSpace)
}

func TestReadInsufficientData(t *testing.T) {
	rb := New[float32](4)
	_, err := rb.Read(make([]float32, 1))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestWraparound(t *testing.T) {
	rb := New[int](8)

	// fill then drain repeatedly so the indices wrap the backing array
	for round := 0; round < 5; round++ {
		src := []int{round*10 + 1, round*10 + 2, round*10 + 3}
		n, err := rb.Write(src)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		dst := make([]int, 3)
		n, err = rb.Read(dst)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		assert.Equal(t, src, dst)
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	rb := New[float32](8)
	rb.Write([]float32{1, 2, 3})

	peeked := make([]float32, 3)
	n, err := rb.Peek(peeked)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, uint64(3), rb.AvailableRead())

	require.NoError(t, rb.Skip(3))
	assert.Equal(t, uint64(0), rb.AvailableRead())
}

func TestReadSlicesAndConsume(t *testing.T) {
	rb := New[float32](8)
	rb.Write([]float32{1, 2, 3, 4, 5})
	first, _, total := rb.ReadSlices()
	require.Equal(t, uint64(5), total)
	require.NoError(t, rb.Consume(uint64(len(first))))
}

func TestReset(t *testing.T) {
	rb := New[float32](8)
	rb.Write([]float32{1, 2, 3})
	rb.Reset()
	assert.Equal(t, uint64(0), rb.AvailableRead())
	assert.Equal(t, rb.Size()-1, rb.AvailableWrite())
}

// TestSPSCConcurrent exercises the single-producer single-consumer contract
// under the race detector: the reader must observe every byte the writer
// produced, in order, with no corruption.
func TestSPSCConcurrent(t *testing.T) {
	rb := New[int32](1024)
	const total = 200_000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int32(0); i < total; {
			n, err := rb.Write([]int32{i})
			if err != nil {
				continue
			}
			i += int32(n)
		}
	}()

	var mismatches int
	go func() {
		defer wg.Done()
		var buf [1]int32
		for want := int32(0); want < total; {
			n, err := rb.Read(buf[:])
			if err != nil {
				continue
			}
			if n > 0 {
				if buf[0] != want {
					mismatches++
				}
				want++
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, 0, mismatches)
}

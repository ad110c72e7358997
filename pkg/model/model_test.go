package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenseModelGetDataPadsSilenceOutsideRange(t *testing.T) {
	ch0 := []float32{1, 2, 3, 4}
	m := NewMemoryDenseModel(44100, 10, [][]float32{ch0})

	out := make([]float32, 6)
	n, err := m.GetData(0, 8, out)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []float32{0, 0, 1, 2, 3, 4}, out)
}

func TestMemoryDenseModelUnknownChannelIsSilent(t *testing.T) {
	m := NewMemoryDenseModel(44100, 0, [][]float32{{1, 2, 3}})
	out := make([]float32, 3)
	n, err := m.GetData(5, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0, 0, 0}, out)
}

func TestMemorySparseModelGetPointsRangeAndOrder(t *testing.T) {
	m := NewMemorySparseModel(44100, []Instant{
		{Frame: 100, Level: 1},
		{Frame: 10, Level: 0.5},
		{Frame: 50, Level: 0.8},
	})
	assert.Equal(t, uint64(10), m.StartFrame())
	assert.Equal(t, uint64(101), m.EndFrame())
	assert.Equal(t, KindSparse, m.Kind())

	got := m.GetPoints(20, 101)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(50), got[0].Frame)
	assert.Equal(t, uint64(100), got[1].Frame)
}

func TestMemoryNoteModelEndFrameAccountsForDuration(t *testing.T) {
	m := NewMemoryNoteModel(44100, []Note{
		{Frame: 0, Duration: 1000, Pitch: 60},
		{Frame: 500, Duration: 2000, Pitch: 64},
	})
	assert.Equal(t, uint64(0), m.StartFrame())
	assert.Equal(t, uint64(2500), m.EndFrame())

	got := m.GetNotes(400, 10000)
	require.Len(t, got, 1)
	assert.Equal(t, 64, got[0].Pitch)
}

func TestStaticProviderDefaultsAndNotifies(t *testing.T) {
	p := NewStaticProvider()
	m := NewMemoryDenseModel(44100, 0, [][]float32{{0}})

	assert.Equal(t, DefaultPlayParameters(), p.Get(m))

	var notified Model
	unsub := p.Subscribe(func(changed Model) { notified = changed })

	p.Set(m, PlayParameters{Gain: 0.5, Pan: -1, Mute: true})
	assert.Same(t, m, notified)
	assert.Equal(t, PlayParameters{Gain: 0.5, Pan: -1, Mute: true}, p.Get(m))

	unsub()
	notified = nil
	p.Set(m, PlayParameters{Gain: 1})
	assert.Nil(t, notified)
}

package model

import "sort"

// base holds the fields common to all in-memory model variants.
type base struct {
	sampleRate int
	start      uint64
	end        uint64
}

func (b *base) SampleRate() int   { return b.sampleRate }
func (b *base) StartFrame() uint64 { return b.start }
func (b *base) EndFrame() uint64   { return b.end }

// MemoryDenseModel is a DenseModel backed by fully in-memory channel slices,
// used by tests; the CLI demo plays files through DecoderDenseModel.
type MemoryDenseModel struct {
	base
	channels [][]float32
}

// NewMemoryDenseModel wraps pre-decoded PCM channel data. Each channel slice
// must have the same length; start is the frame offset of channels[0][0].
func NewMemoryDenseModel(sampleRate int, start uint64, channels [][]float32) *MemoryDenseModel {
	var length uint64
	if len(channels) > 0 {
		length = uint64(len(channels[0]))
	}
	return &MemoryDenseModel{
		base:     base{sampleRate: sampleRate, start: start, end: start + length},
		channels: channels,
	}
}

func (m *MemoryDenseModel) Kind() Kind         { return KindDense }
func (m *MemoryDenseModel) ChannelCount() int  { return len(m.channels) }

// GetData copies up to len(out) samples of channel starting at frame start.
// Frames outside [StartFrame, EndFrame) read as silence.
func (m *MemoryDenseModel) GetData(channel int, start uint64, out []float32) (int, error) {
	if channel < 0 || channel >= len(m.channels) {
		zero(out)
		return len(out), nil
	}
	data := m.channels[channel]
	n := 0
	for n < len(out) {
		frame := start + uint64(n)
		if frame < m.start || frame >= m.end {
			out[n] = 0
		} else {
			out[n] = data[frame-m.start]
		}
		n++
	}
	return n, nil
}

// MemorySparseModel is a SparseModel backed by a sorted in-memory slice of
// instants.
type MemorySparseModel struct {
	base
	points []Instant
}

// NewMemorySparseModel wraps pre-sorted (or unsorted) instants, sorting them
// by frame and deriving StartFrame/EndFrame from the extremes.
func NewMemorySparseModel(sampleRate int, points []Instant) *MemorySparseModel {
	sorted := append([]Instant(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	m := &MemorySparseModel{base: base{sampleRate: sampleRate}, points: sorted}
	if len(sorted) > 0 {
		m.start = sorted[0].Frame
		m.end = sorted[len(sorted)-1].Frame + 1
	}
	return m
}

func (m *MemorySparseModel) Kind() Kind { return KindSparse }

// GetPoints returns the instants with Frame in [start, end), in ascending order.
func (m *MemorySparseModel) GetPoints(start, end uint64) []Instant {
	lo := sort.Search(len(m.points), func(i int) bool { return m.points[i].Frame >= start })
	hi := sort.Search(len(m.points), func(i int) bool { return m.points[i].Frame >= end })
	if lo >= hi {
		return nil
	}
	out := make([]Instant, hi-lo)
	copy(out, m.points[lo:hi])
	return out
}

// MemoryNoteModel is a NoteModel backed by a sorted in-memory slice of notes.
type MemoryNoteModel struct {
	base
	notes []Note
}

// NewMemoryNoteModel wraps pre-sorted (or unsorted) notes, sorting them by
// start frame and deriving StartFrame/EndFrame from the extremes (accounting
// for duration).
func NewMemoryNoteModel(sampleRate int, notes []Note) *MemoryNoteModel {
	sorted := append([]Note(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	m := &MemoryNoteModel{base: base{sampleRate: sampleRate}, notes: sorted}
	if len(sorted) > 0 {
		m.start = sorted[0].Frame
		end := uint64(0)
		for _, n := range sorted {
			if stop := n.Frame + n.Duration; stop > end {
				end = stop
			}
		}
		m.end = end
	}
	return m
}

func (m *MemoryNoteModel) Kind() Kind { return KindNote }

// GetNotes returns notes whose onset lies in [start, end), in ascending order.
func (m *MemoryNoteModel) GetNotes(start, end uint64) []Note {
	lo := sort.Search(len(m.notes), func(i int) bool { return m.notes[i].Frame >= start })
	hi := sort.Search(len(m.notes), func(i int) bool { return m.notes[i].Frame >= end })
	if lo >= hi {
		return nil
	}
	out := make([]Note, hi-lo)
	copy(out, m.notes[lo:hi])
	return out
}

package playsource

import (
	"math"
	"sync/atomic"
)

// metrics holds the RT-safe counters the callback and fill threads update.
// All fields are touched by the callback thread without locking, so every
// field here must be an atomic.
type metrics struct {
	underruns         atomic.Uint64
	stretcherUnderruns atomic.Uint64
	pluginOverloads   atomic.Uint64
	framesPlayed      atomic.Uint64

	levelL atomic.Uint32 // float32 bits
	levelR atomic.Uint32
}

// Snapshot is a point-in-time copy of the play source's metrics, safe to
// read from any thread.
type Snapshot struct {
	Underruns         uint64
	StretcherUnderruns uint64
	PluginOverloads   uint64
	FramesPlayed      uint64
	LevelL            float32
	LevelR            float32
}

func (m *metrics) snapshot() Snapshot {
	return Snapshot{
		Underruns:          m.underruns.Load(),
		StretcherUnderruns: m.stretcherUnderruns.Load(),
		PluginOverloads:    m.pluginOverloads.Load(),
		FramesPlayed:       m.framesPlayed.Load(),
		LevelL:             math.Float32frombits(m.levelL.Load()),
		LevelR:             math.Float32frombits(m.levelR.Load()),
	}
}

// setLevels publishes new peak levels, always from the callback thread.
func (m *metrics) setLevels(l, r float32) {
	m.levelL.Store(math.Float32bits(l))
	m.levelR.Store(math.Float32bits(r))
}

func (m *metrics) levels() (l, r float32) {
	return math.Float32frombits(m.levelL.Load()), math.Float32frombits(m.levelR.Load())
}

// peak returns the maximum absolute sample value in buf.
func peak(buf []float32) float32 {
	var p float32
	for _, v := range buf {
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return p
}

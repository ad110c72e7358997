package stretcher

import (
	"fmt"

	"github.com/drgolem/playcore/pkg/window"
)

// DefaultAnalysisHop and DefaultWindowFactor pick a window length that
// satisfies wlen >= 2*R*n1 with headroom, matching common phase-vocoder
// practice (75% overlap at R=1).
const (
	DefaultAnalysisHop   = 256
	DefaultWindowFactor  = 4 // wlen = DefaultWindowFactor * ratio * n1, so always >= 2*ratio*n1
)

// ChannelSet bundles one IntegerTimeStretcher per channel, constructed
// together on slowdown enable and torn down together (via the scavenger) on
// slowdown change, sized to the device's block size.
type ChannelSet struct {
	Ratio      int
	BlockSize  int
	Stretchers []*IntegerTimeStretcher
}

// NewChannelSet builds one stretcher per channel for the given slowdown
// ratio and device block size.
func NewChannelSet(channels, ratio, blockSize int) (*ChannelSet, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("stretcher: channels must be positive")
	}

	n1 := DefaultAnalysisHop
	wlen := DefaultWindowFactor * ratio * n1
	if wlen < 2*ratio*n1 {
		wlen = 2 * ratio * n1
	}

	cs := &ChannelSet{
		Ratio:      ratio,
		BlockSize:  blockSize,
		Stretchers: make([]*IntegerTimeStretcher, channels),
	}
	for c := 0; c < channels; c++ {
		ts, err := New(ratio, blockSize, n1, wlen, window.Hann)
		if err != nil {
			return nil, fmt.Errorf("stretcher: channel %d: %w", c, err)
		}
		cs.Stretchers[c] = ts
	}
	return cs, nil
}

// Latency returns the processing latency shared by all channels in the set
// (they are constructed identically).
func (cs *ChannelSet) Latency() int {
	if len(cs.Stretchers) == 0 {
		return 0
	}
	return cs.Stretchers[0].Latency()
}

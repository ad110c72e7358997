// Package window builds and applies analysis/synthesis windows for the
// phase vocoder and short cosine fade envelopes for the clip mixer.
package window

import (
	"math"

	gonumwindow "gonum.org/v1/gonum/dsp/window"
)

// Type names a supported window shape.
type Type int

const (
	// Hann is the raised-cosine window used by the stretcher for analysis
	// and synthesis.
	Hann Type = iota
)

// Make returns a window of length n and the given shape, normalized to
// [0,1].
func Make(n int, t Type) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	switch t {
	case Hann:
		return gonumwindow.Hann(w)
	default:
		return gonumwindow.Hann(w)
	}
}

// Apply multiplies dst in place by w elementwise. len(dst) must equal len(w).
func Apply(dst []float64, w []float64) {
	for i := range dst {
		dst[i] *= w[i]
	}
}

// CosineFadeIn returns the gain envelope for a cosine (equal-power-ish,
// raised-cosine) fade-in of n samples, 0 at sample 0 rising to 1 at sample
// n-1. Used by the clip mixer for 5 ms note-on ramps.
func CosineFadeIn(n int) []float32 {
	return cosineRamp(n, false)
}

// CosineFadeOut returns the gain envelope for a cosine fade-out of n
// samples, 1 at sample 0 falling to 0 at sample n-1.
func CosineFadeOut(n int) []float32 {
	return cosineRamp(n, true)
}

func cosineRamp(n int, fadeOut bool) []float32 {
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		// raised-cosine: 0.5*(1-cos(pi*t)) rises 0->1 over t in [0,1]
		t := float64(i) / float64(max(n-1, 1))
		v := 0.5 * (1 - math.Cos(math.Pi*t))
		if fadeOut {
			v = 1 - v
		}
		out[i] = float32(v)
	}
	return out
}

package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHannEndpointsZero(t *testing.T) {
	w := Make(8, Hann)
	assert.InDelta(t, 0.0, w[0], 1e-9)
	assert.InDelta(t, 0.0, w[len(w)-1], 1e-9)
}

func TestApplyScalesElementwise(t *testing.T) {
	dst := []float64{1, 1, 1, 1}
	w := []float64{0, 0.5, 1, 0.25}
	Apply(dst, w)
	assert.Equal(t, w, dst)
}

func TestCosineFadeInOutAreComplementary(t *testing.T) {
	n := 64
	in := CosineFadeIn(n)
	out := CosineFadeOut(n)

	assert.InDelta(t, 0.0, in[0], 1e-6)
	assert.InDelta(t, 1.0, in[n-1], 1e-6)
	assert.InDelta(t, 1.0, out[0], 1e-6)
	assert.InDelta(t, 0.0, out[n-1], 1e-6)

	for i := 0; i < n; i++ {
		assert.InDelta(t, 1.0, float64(in[i]+out[i]), 1e-6)
	}
}

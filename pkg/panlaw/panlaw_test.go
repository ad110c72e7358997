package panlaw

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonoPassesThroughAtUnity(t *testing.T) {
	assert.Equal(t, float32(1), Gain(-1, 0, 1))
	assert.Equal(t, float32(1), Gain(1, 0, 1))
}

func TestHardLeftSilencesRight(t *testing.T) {
	assert.InDelta(t, 0.0, Gain(-1, 1, 2), 1e-6)
	assert.InDelta(t, 1.0, Gain(-1, 0, 2), 1e-6)
}

func TestHardRightSilencesLeft(t *testing.T) {
	assert.InDelta(t, 0.0, Gain(1, 0, 2), 1e-6)
	assert.InDelta(t, 1.0, Gain(1, 1, 2), 1e-6)
}

func TestCenterSplitsEquallyAndPreservesPower(t *testing.T) {
	l := Gain(0, 0, 2)
	r := Gain(0, 1, 2)
	assert.InDelta(t, float64(l), float64(r), 1e-6)
	assert.InDelta(t, 1.0, float64(l*l+r*r), 1e-6)
}

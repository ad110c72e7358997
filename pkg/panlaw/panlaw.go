// Package panlaw implements equal-power stereo panning, shared by the clip
// mixer's voice rendering and the generator's dense-model channel mapping.
package panlaw

import "math"

// Gain returns the equal-power gain for channel of channels at pan position
// pan in [-1, 1] (-1 fully left/front, 0 center, 1 fully right/back).
// Channel 0 is left/front, channel 1 is right/back. Channel counts other
// than 2 (mono included) pass through at unity gain.
func Gain(pan float32, channel, channels int) float32 {
	if channels != 2 {
		return 1
	}
	angle := float64(pan+1) * math.Pi / 4 // maps [-1,1] -> [0, pi/2]
	if channel == 0 {
		return float32(math.Cos(angle))
	}
	return float32(math.Sin(angle))
}

// Package scorer turns zone statistics and proximity channels into component
// utilities and a single 0-100 habitability score.
package scorer

import "math"

// LowerIsBetter maps a raw statistic where smaller is better (air index,
// crime, rent) to (0, 1]. Negative inputs clamp to 0, which maps to 1.
func LowerIsBetter(x float64) float64 {
	x = math.Max(0, x)
	return 1 / (1 + math.Log1p(x))
}

// SchoolUtility rescales a school rating on a 0-band scale into [0, 1].
func SchoolUtility(x, band float64) float64 {
	return clamp01(x / band)
}

// Decay is e^-d for a distance in kilometers; negative distances clamp to 0.
func Decay(d float64) float64 {
	return math.Exp(-math.Max(0, d))
}

// Saturating combines nearby influences as independent hits:
// 1 - prod(1 - clamp01(rho * Decay(d))). An empty list yields 0.
func Saturating(distances []float64, rho float64) float64 {
	miss := 1.0
	for _, d := range distances {
		miss *= 1 - clamp01(rho*Decay(d))
	}
	return clamp01(1 - miss)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

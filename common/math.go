package common

import "math"

// TileSize is the default cell edge length, in world units, for levels loaded from JSON.
const TileSize = 32

// Epsilon is the tolerance used when comparing world-space distances.
const Epsilon = 1e-6

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sign returns -1, 0 or 1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func ApproxEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Pi re-exports the package's float32 pi for callers building geometry.
const Pi = K_PI

// Sin is the float32 sine.
func Sin(x float32) float32 { return ksin(x) }

// Cos is the float32 cosine.
func Cos(x float32) float32 { return kcos(x) }

// Sqrt is the float32 square root.
func Sqrt(x float32) float32 { return ksqrt(x) }

// Package math provides the float32 vector types used for terrain geometry.
package math

// Vec2 is a 2D vector. Chunk UVs use X as u and Y as v.
type Vec2 struct {
	X, Y float32
}

// Chebyshev returns the larger of the per-axis distances to other.
func (v Vec2) Chebyshev(other Vec2) float32 {
	return max(Abs(v.X-other.X), Abs(v.Y-other.Y))
}

// Abs returns |f|.
func Abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// Lerp interpolates between a and b by t.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp limits f to [lo, hi].
func Clamp(f, lo, hi float32) float32 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// Package geom holds the small amount of vector arithmetic shared by the
// scene and growth packages on top of sdfx's v3.Vec.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Axis-aligned unit vectors. Y is up.
var (
	Zero    = v3.Vec{}
	Up      = v3.Vec{X: 0, Y: 1, Z: 0}
	Down    = v3.Vec{X: 0, Y: -1, Z: 0}
	Forward = v3.Vec{X: 0, Y: 0, Z: 1}
)

// epsilon below which a vector is treated as zero length.
const epsilon = 1e-12

// Normalize returns a unit vector, or the zero vector if v has no length.
func Normalize(v v3.Vec) v3.Vec {
	l := v.Length()
	if l < epsilon {
		return v3.Vec{}
	}
	return v.MulScalar(1 / l)
}

// ClampLength shortens v to at most max, keeping its direction.
func ClampLength(v v3.Vec, max float64) v3.Vec {
	l := v.Length()
	if l <= max || l < epsilon {
		return v
	}
	return v.MulScalar(max / l)
}

// Lerp interpolates linearly between a and b; t is clamped to [0,1].
func Lerp(a, b v3.Vec, t float64) v3.Vec {
	t = Clamp(t, 0, 1)
	return a.Add(b.Sub(a).MulScalar(t))
}

// LerpScalar interpolates linearly between a and b; t is clamped to [0,1].
func LerpScalar(a, b, t float64) float64 {
	t = Clamp(t, 0, 1)
	return a + (b-a)*t
}

// Distance is the euclidean distance between a and b.
func Distance(a, b v3.Vec) float64 {
	return b.Sub(a).Length()
}

// Distance2 is the squared euclidean distance between a and b.
func Distance2(a, b v3.Vec) float64 {
	return b.Sub(a).Length2()
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// PingPong folds t into a triangle wave that rises from 0 to length and
// falls back to 0 with period 2*length.
func PingPong(t, length float64) float64 {
	if length <= 0 {
		return 0
	}
	m := math.Mod(t, 2*length)
	if m < 0 {
		m += 2 * length
	}
	return length - math.Abs(m-length)
}

// RotateY rotates v around the Y axis by angle radians.
func RotateY(v v3.Vec, angle float64) v3.Vec {
	s, c := math.Sincos(angle)
	return v3.Vec{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// IsFinite reports whether all components of v are finite.
func IsFinite(v v3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

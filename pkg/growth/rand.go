package growth

import (
	"math"
	"math/rand"

	"github.com/chazu/tendril/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Rand is the subset of the math/rand generator the simulation draws from.
// *rand.Rand satisfies it.
type Rand interface {
	// Float64 returns a pseudo-random number in [0.0,1.0).
	Float64() float64

	// Intn returns a pseudo-random number in [0,n). It panics if n <= 0.
	Intn(n int) int
}

// NewRand returns a generator seeded with seed.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// onUnitSphere returns a uniformly distributed point on the unit sphere.
func onUnitSphere(r Rand) v3.Vec {
	z := 2*r.Float64() - 1
	phi := 2 * math.Pi * r.Float64()
	s := math.Sqrt(1 - z*z)
	return v3.Vec{X: s * math.Cos(phi), Y: s * math.Sin(phi), Z: z}
}

// newSearchDisc returns SearchDiscSize offsets scattered over the unit disc
// in the XZ plane.
func newSearchDisc(r Rand) [SearchDiscSize]v3.Vec {
	var disc [SearchDiscSize]v3.Vec
	for i := range disc {
		angle := r.Float64() * 2 * math.Pi
		disc[i] = geom.RotateY(geom.Forward, angle).MulScalar(r.Float64())
	}
	return disc
}

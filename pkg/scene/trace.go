package scene

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// maxTraceSteps bounds each sdf.Raycast3 march.
	maxTraceSteps = 256
	// traceEpsilon is the distance at which a marching ray counts as a hit.
	traceEpsilon = 1e-6
	// grazeStep nudges a ray past a surface it is leaving.
	grazeStep = 1e-4
	// maxGrazes bounds how many leaving contacts one ray may step past.
	maxGrazes = 8
	// gradientStep is the central-difference step for surface normals.
	gradientStep = 1e-5
)

// sphereTrace casts a ray at field through sdf.Raycast3. scale (0,1] shortens
// each step for fields that overestimate distance. dir must be unit length.
//
// Raycast3 marches on |d|, so it reports a contact at t=0 for a ray that
// starts on the surface and one whose origin is inside the solid. Both are
// filtered here: a ray starting inside never hits, and a contact whose normal
// faces along the ray is stepped past.
func sphereTrace(field sdf.SDF3, scale float64, origin, dir v3.Vec, maxDist float64) (Hit, bool) {
	if field.Evaluate(origin) < 0 {
		return Hit{}, false
	}
	from, travelled := origin, 0.0
	for i := 0; i <= maxGrazes; i++ {
		p, t, _ := sdf.Raycast3(field, from, dir, 0, scale, traceEpsilon, maxDist-travelled, maxTraceSteps)
		if t < 0 {
			return Hit{}, false
		}
		travelled += t
		n := sdf.Normal3(field, p, gradientStep)
		if n.Dot(dir) < 0 {
			return Hit{Point: p, Normal: n, Distance: travelled}, true
		}
		travelled += grazeStep
		if travelled > maxDist {
			return Hit{}, false
		}
		from = p.Add(dir.MulScalar(grazeStep))
	}
	return Hit{}, false
}

// closestOnField projects p onto the zero level set of field.
func closestOnField(field sdf.SDF3, p v3.Vec) v3.Vec {
	q := p
	for i := 0; i < 4; i++ {
		d := field.Evaluate(q)
		if d <= 0 {
			if i == 0 {
				return p
			}
			return q
		}
		if d < traceEpsilon {
			break
		}
		q = q.Sub(sdf.Normal3(field, q, gradientStep).MulScalar(d))
	}
	return q
}

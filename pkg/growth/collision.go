package growth

import (
	"github.com/chazu/tendril/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// CollisionPushDistance is how far a colliding position is pushed off the
// surface along the hit normal on each deflection.
const CollisionPushDistance = 0.01

// MaxDeflections bounds the deflection loop. A segment that still collides
// after this many deflections is wedged and cannot be resolved.
const MaxDeflections = 16

// Resolution is the outcome of resolving one segment against the scene.
type Resolution struct {
	// Position is the proposed position after deflection.
	Position v3.Vec
	// Climbing is set when the segment touched a surface.
	Climbing bool
	// Adhesion is the inverse normal of the last surface hit, or zero.
	Adhesion v3.Vec
	// OK is false when the segment deadlocked.
	OK bool
}

// Resolve deflects the segment oldPos->newPos off the surfaces selected by
// filter. Each hit pushes the end point along the hit normal by push and the
// segment is tested again. A clear segment comes back unchanged.
func Resolve(q scene.Query, push float64, oldPos, newPos v3.Vec, filter scene.Filter) Resolution {
	res := Resolution{Position: newPos, OK: true}
	for deflections := 0; ; deflections++ {
		seg := res.Position.Sub(oldPos)
		dist := seg.Length()
		if dist == 0 {
			return res
		}
		hit, ok := q.Raycast(oldPos, seg, dist, filter)
		if !ok {
			return res
		}
		if deflections == MaxDeflections {
			res.OK = false
			return res
		}
		res.Position = res.Position.Add(hit.Normal.MulScalar(push))
		res.Adhesion = hit.Normal.MulScalar(-1)
		res.Climbing = true
	}
}

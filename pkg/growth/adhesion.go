package growth

import (
	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/profile"
	"github.com/chazu/tendril/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SearchDiscSize is the number of offsets probed around a terrain point.
const SearchDiscSize = 64

// terrainProbeDepth is how far below the best terrain sample the slope ray
// aims.
const terrainProbeDepth = 0.25

// Sampler computes the pull toward nearby surfaces. It caches mesh vertex
// lists per MeshID and holds the terrain search disc; the host flushes both
// with Refresh once per tick. A Sampler is not safe for concurrent use.
type Sampler struct {
	q      scene.Query
	meshes map[scene.MeshID][]v3.Vec
	disc   [SearchDiscSize]v3.Vec
}

// NewSampler returns a sampler over q. Its search disc is all zeros until
// Refresh or SetSearchDisc is called.
func NewSampler(q scene.Query) *Sampler {
	return &Sampler{
		q:      q,
		meshes: make(map[scene.MeshID][]v3.Vec),
	}
}

// Refresh flushes the mesh vertex cache and draws a new search disc.
func (s *Sampler) Refresh(r Rand) {
	s.Invalidate()
	s.disc = newSearchDisc(r)
}

// Invalidate flushes the mesh vertex cache. Call it whenever scene geometry
// changes.
func (s *Sampler) Invalidate() {
	clear(s.meshes)
}

// SetSearchDisc replaces the terrain search offsets.
func (s *Sampler) SetSearchDisc(disc [SearchDiscSize]v3.Vec) {
	s.disc = disc
}

// SearchDisc returns the current terrain search offsets.
func (s *Sampler) SearchDisc() [SearchDiscSize]v3.Vec {
	return s.disc
}

// Compute returns the adhesion vector at pos, a world position. It points
// toward the nearest surface within p.MaxAdhesionDistance and scales by
// 1 - distance/MaxAdhesionDistance. The zero vector means nothing attracts.
func (s *Sampler) Compute(pos v3.Vec, p profile.Profile) v3.Vec {
	maxDist := p.MaxAdhesionDistance
	minDist := maxDist
	goodEnough := p.StepDistance * p.StepDistance

	var adhesion v3.Vec
	for _, h := range s.q.Overlap(pos, maxDist, p.CollisionMask) {
		var closest v3.Vec
		switch h.Kind {
		case scene.KindMesh:
			closest = s.closestVertex(h, pos, maxDist)
		case scene.KindTerrain:
			closest = s.closestTerrain(h, pos, minDist, p)
		default:
			closest = s.q.ClosestPoint(h, pos)
		}

		d := geom.Distance(pos, closest)
		if d < minDist {
			minDist = d
			adhesion = geom.Normalize(closest.Sub(pos)).MulScalar(1 - d/maxDist)
			if d*d < goodEnough {
				break
			}
		}
	}
	return adhesion
}

// closestVertex approximates the closest point on a non-convex mesh by its
// nearest vertex, then refines it with a ray toward that vertex.
func (s *Sampler) closestVertex(h scene.Handle, pos v3.Vec, maxDist float64) v3.Vec {
	closest := pos.Add(geom.Down.MulScalar(maxDist * 1.1))
	best := maxDist * maxDist * 4
	for _, local := range s.vertices(h) {
		w := s.q.TransformPoint(h, local)
		if d2 := geom.Distance2(pos, w); d2 < best {
			closest, best = w, d2
		}
	}
	if hit, ok := s.q.RaycastSurface(h, pos, closest.Sub(pos), maxDist); ok {
		closest = pos.Sub(hit.Normal.MulScalar(hit.Distance))
	}
	return closest
}

func (s *Sampler) vertices(h scene.Handle) []v3.Vec {
	if h.Mesh == scene.NoMesh {
		return s.q.MeshVertices(h)
	}
	verts, ok := s.meshes[h.Mesh]
	if !ok {
		verts = s.q.MeshVertices(h)
		s.meshes[h.Mesh] = verts
	}
	return verts
}

// closestTerrain searches the disc around the point below pos for the
// nearest terrain sample, then casts toward it to recover the slope.
func (s *Sampler) closestTerrain(h scene.Handle, pos v3.Vec, minDist float64, p profile.Profile) v3.Vec {
	closest := v3.Vec{X: pos.X, Y: s.q.SampleHeight(h, pos.X, pos.Z), Z: pos.Z}
	best := closest
	bestD2 := geom.Distance2(pos, best)
	goodEnough := p.StepDistance * p.StepDistance

	for _, off := range s.disc {
		c := closest.Add(off.MulScalar(p.MaxAdhesionDistance))
		c.Y = s.q.SampleHeight(h, c.X, c.Z)
		if d2 := geom.Distance2(pos, c); d2 < bestD2 {
			best, bestD2 = c, d2
			if d2 < goodEnough {
				break
			}
		}
	}

	probe := best.Add(geom.Down.MulScalar(terrainProbeDepth))
	if hit, ok := s.q.Raycast(pos, probe.Sub(pos), minDist, p.CollisionMask); ok {
		closest = pos.Sub(hit.Normal.MulScalar(geom.Distance(best, pos)))
	}
	return closest
}

package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ Query = (*Scene)(nil)

// surface is one entry of a Scene.
type surface struct {
	name    string
	kind    Kind
	layer   Filter
	field   sdf.SDF3 // generic solids and terrain
	scale   float64  // sphere-tracing step scale for field
	terrain Heightfield
	mesh    *meshShape
	meshID  MeshID
}

// distance is a lower bound on the distance from p to the surface, negative
// inside solids and below terrain.
func (s *surface) distance(p v3.Vec) float64 {
	if s.mesh != nil {
		return s.mesh.boundsDistance(p)
	}
	return s.field.Evaluate(p)
}

// Scene is an in-memory Query over sdfx solids, triangle meshes and
// heightfields. It is not safe for concurrent mutation; queries are
// read-only.
type Scene struct {
	surfaces []*surface
	names    map[string]int
	meshIDs  map[*MeshData]MeshID
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{
		names:   make(map[string]int),
		meshIDs: make(map[*MeshData]MeshID),
	}
}

// Len returns the number of surfaces.
func (sc *Scene) Len() int {
	return len(sc.surfaces)
}

// Lookup returns the handle of the surface with the given name.
func (sc *Scene) Lookup(name string) (Handle, bool) {
	id, ok := sc.names[name]
	if !ok {
		return Handle{}, false
	}
	return sc.handle(id), true
}

func (sc *Scene) handle(id int) Handle {
	s := sc.surfaces[id]
	return Handle{ID: id, Kind: s.kind, Mesh: s.meshID}
}

func (sc *Scene) add(s *surface) (Handle, error) {
	if s.name != "" {
		if _, exists := sc.names[s.name]; exists {
			return Handle{}, fmt.Errorf("surface %q already defined", s.name)
		}
	}
	if s.layer == 0 {
		s.layer = 1
	}
	id := len(sc.surfaces)
	sc.surfaces = append(sc.surfaces, s)
	if s.name != "" {
		sc.names[s.name] = id
	}
	return sc.handle(id), nil
}

// AddSolid adds an analytic sdfx solid as a generic surface. A zero layer
// defaults to layer 1.
func (sc *Scene) AddSolid(name string, solid sdf.SDF3, layer Filter) (Handle, error) {
	if solid == nil {
		return Handle{}, errors.New("nil solid")
	}
	return sc.add(&surface{
		name:   name,
		kind:   KindGeneric,
		layer:  layer,
		field:  solid,
		scale:  1,
		meshID: NoMesh,
	})
}

// AddMesh places shared mesh data at offset. Non-convex meshes are sampled
// through their vertices by the adhesion search; convex ones answer exact
// closest-point queries.
func (sc *Scene) AddMesh(name string, data *MeshData, offset v3.Vec, convex bool, layer Filter) (Handle, error) {
	if data == nil {
		return Handle{}, errors.New("nil mesh data")
	}
	id, ok := sc.meshIDs[data]
	if !ok {
		id = MeshID(len(sc.meshIDs))
		sc.meshIDs[data] = id
	}
	kind := KindMesh
	if convex {
		kind = KindGeneric
	}
	return sc.add(&surface{
		name:   name,
		kind:   kind,
		layer:  layer,
		mesh:   newMeshShape(data, offset),
		meshID: id,
	})
}

// AddTerrain adds a heightfield surface.
func (sc *Scene) AddTerrain(name string, field Heightfield, layer Filter) (Handle, error) {
	if field == nil {
		return Handle{}, errors.New("nil heightfield")
	}
	return sc.add(&surface{
		name:    name,
		kind:    KindTerrain,
		layer:   layer,
		field:   terrainSDF{field: field},
		scale:   terrainLipschitz,
		terrain: field,
		meshID:  NoMesh,
	})
}

func (sc *Scene) Overlap(center v3.Vec, radius float64, filter Filter) []Handle {
	var out []Handle
	for id, s := range sc.surfaces {
		if !filter.Matches(s.layer) {
			continue
		}
		if s.distance(center) <= radius {
			out = append(out, sc.handle(id))
		}
	}
	return out
}

func (sc *Scene) ClosestPoint(h Handle, p v3.Vec) v3.Vec {
	s, ok := sc.get(h)
	if !ok {
		return p
	}
	switch {
	case s.mesh != nil:
		return s.mesh.closestPoint(p)
	case s.terrain != nil:
		return v3.Vec{X: p.X, Y: s.terrain.Height(p.X, p.Z), Z: p.Z}
	default:
		return closestOnField(s.field, p)
	}
}

func (sc *Scene) Raycast(origin, dir v3.Vec, maxDist float64, filter Filter) (Hit, bool) {
	dir = geom.Normalize(dir)
	if dir == geom.Zero || maxDist <= 0 {
		return Hit{}, false
	}
	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, s := range sc.surfaces {
		if !filter.Matches(s.layer) {
			continue
		}
		if hit, ok := s.raycast(origin, dir, maxDist); ok && hit.Distance < best.Distance {
			best, found = hit, true
		}
	}
	return best, found
}

func (sc *Scene) RaycastSurface(h Handle, origin, dir v3.Vec, maxDist float64) (Hit, bool) {
	s, ok := sc.get(h)
	dir = geom.Normalize(dir)
	if !ok || dir == geom.Zero || maxDist <= 0 {
		return Hit{}, false
	}
	return s.raycast(origin, dir, maxDist)
}

func (s *surface) raycast(origin, dir v3.Vec, maxDist float64) (Hit, bool) {
	if s.mesh != nil {
		return s.mesh.raycast(origin, dir, maxDist)
	}
	return sphereTrace(s.field, s.scale, origin, dir, maxDist)
}

func (sc *Scene) SampleHeight(h Handle, x, z float64) float64 {
	s, ok := sc.get(h)
	if !ok || s.terrain == nil {
		return 0
	}
	return s.terrain.Height(x, z)
}

func (sc *Scene) MeshVertices(h Handle) []v3.Vec {
	s, ok := sc.get(h)
	if !ok || s.mesh == nil {
		return nil
	}
	out := make([]v3.Vec, len(s.mesh.data.Vertices))
	copy(out, s.mesh.data.Vertices)
	return out
}

func (sc *Scene) TransformPoint(h Handle, local v3.Vec) v3.Vec {
	s, ok := sc.get(h)
	if !ok || s.mesh == nil {
		return local
	}
	return local.Add(s.mesh.offset)
}

func (sc *Scene) get(h Handle) (*surface, bool) {
	if h.ID < 0 || h.ID >= len(sc.surfaces) {
		return nil, false
	}
	return sc.surfaces[h.ID], true
}

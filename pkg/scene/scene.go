// Package scene defines the narrow surface-query capability the growth
// simulation consumes, and a reference Scene backed by sdfx distance fields,
// triangle meshes and heightfields.
package scene

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind selects how the adhesion sampler finds the closest point on a surface.
type Kind int

const (
	KindGeneric Kind = iota // analytic or convex: closest-point query
	KindMesh                // non-convex triangle mesh: nearest cached vertex
	KindTerrain             // heightfield: stochastic disc search
)

func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindMesh:
		return "mesh"
	case KindTerrain:
		return "terrain"
	default:
		return "unknown"
	}
}

// Filter is a layer bitmask selecting which surfaces take part in a query.
type Filter uint32

// FilterAll matches every layer.
const FilterAll = ^Filter(0)

// Matches reports whether a surface on layer passes the filter.
func (f Filter) Matches(layer Filter) bool {
	return f&layer != 0
}

// MeshID identifies shared mesh data. Several mesh surfaces may reference the
// same MeshID, in which case their local vertex lists are identical.
type MeshID int

// NoMesh is the MeshID of surfaces that are not meshes.
const NoMesh MeshID = -1

// Handle is an opaque reference to one surface of a Query.
type Handle struct {
	ID   int
	Kind Kind
	Mesh MeshID
}

// Hit describes a ray intersection.
type Hit struct {
	Point    v3.Vec
	Normal   v3.Vec
	Distance float64
}

// Query answers the spatial questions the growth simulation asks about the
// scene. Implementations own their surfaces; callers never construct them.
type Query interface {
	// Overlap returns every surface passing filter whose distance from
	// center is at most radius.
	Overlap(center v3.Vec, radius float64, filter Filter) []Handle

	// ClosestPoint returns the point on h nearest to p. Points inside the
	// surface are returned unchanged.
	ClosestPoint(h Handle, p v3.Vec) v3.Vec

	// Raycast finds the nearest surface passing filter hit by the ray from
	// origin along dir within maxDist. Surfaces containing origin are ignored.
	Raycast(origin, dir v3.Vec, maxDist float64, filter Filter) (Hit, bool)

	// RaycastSurface is Raycast restricted to a single surface.
	RaycastSurface(h Handle, origin, dir v3.Vec, maxDist float64) (Hit, bool)

	// SampleHeight returns the terrain elevation under (x, z).
	SampleHeight(h Handle, x, z float64) float64

	// MeshVertices returns the local-space vertices of a mesh surface.
	MeshVertices(h Handle) []v3.Vec

	// TransformPoint maps a local-space point of h into world space.
	TransformPoint(h Handle, local v3.Vec) v3.Vec
}

// Package tessellate turns a growth graph into triangle meshes using a
// geometry kernel. One mesh is produced per root.
package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/kernel"
	"github.com/chazu/tendril/pkg/profile"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// minRadiusScale is the thinnest a branch tapers to, as a fraction of
// Profile.BranchRadius.
const minRadiusScale = 0.25

// unioner is implemented by kernels that can union many solids at once.
type unioner interface {
	UnionAll(solids ...kernel.Solid) kernel.Solid
}

// Tessellate builds one mesh per root with at least two nodes. Each segment
// becomes a cylinder capped with a sphere at its end, tapering from
// p.BranchRadius toward the tip as the root approaches p.MaxLength. The
// tessellator is read-only and never mutates the graph.
func Tessellate(g *graph.Graph, p profile.Profile, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if g == nil || p.BranchRadius <= 0 {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	for i, r := range g.Roots {
		solid := rootSolid(k, g.Seed, r, p)
		if solid == nil {
			continue
		}
		mesh, err := k.ToMesh(solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for root %d: %w", i, err)
		}
		mesh.PartName = fmt.Sprintf("root-%d", i)
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// rootSolid returns the union of a root's segment solids, or nil if the
// root has no segment of positive length.
func rootSolid(k kernel.Kernel, seed v3.Vec, r *graph.Root, p profile.Profile) kernel.Solid {
	var parts []kernel.Solid
	for i := 1; i < r.Len(); i++ {
		a, b := r.Nodes[i-1], r.Nodes[i]
		s := segment(k, a.Position.Add(seed), b.Position.Add(seed), radius(b, p))
		if s != nil {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	if u, ok := k.(unioner); ok {
		return u.UnionAll(parts...)
	}
	solid := parts[0]
	for _, s := range parts[1:] {
		solid = k.Union(solid, s)
	}
	return solid
}

func radius(n graph.Node, p profile.Profile) float64 {
	scale := 1.0
	if p.MaxLength > 0 {
		scale = math.Max(minRadiusScale, 1-n.Length/p.MaxLength)
	}
	return p.BranchRadius * scale
}

// segment returns a cylinder from a to b with a sphere at b, or nil for a
// zero length segment.
func segment(k kernel.Kernel, a, b v3.Vec, radius float64) kernel.Solid {
	d := b.Sub(a)
	length := d.Length()
	if length < 1e-9 {
		return nil
	}
	dir := d.MulScalar(1 / length)

	// Cylinders run along Z: tilt by theta about Y, then spin by phi
	// about Z.
	theta := math.Acos(geom.Clamp(dir.Z, -1, 1)) * 180 / math.Pi
	phi := math.Atan2(dir.Y, dir.X) * 180 / math.Pi

	cyl := k.Cylinder(length, radius, 16)
	cyl = k.Rotate(cyl, 0, theta, phi)
	mid := a.Add(b).MulScalar(0.5)
	cyl = k.Translate(cyl, mid.X, mid.Y, mid.Z)

	joint := k.Translate(k.Sphere(radius), b.X, b.Y, b.Z)
	return k.Union(cyl, joint)
}

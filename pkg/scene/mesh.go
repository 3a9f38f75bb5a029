package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Triangle indexes three vertices of a MeshData. Winding is counter-clockwise
// seen from outside, so the cross product of its edges points outward.
type Triangle [3]int

// MeshData is shared triangle geometry in local space.
type MeshData struct {
	Vertices  []v3.Vec
	Triangles []Triangle
}

// NewMeshData validates indices and returns mesh data.
func NewMeshData(vertices []v3.Vec, triangles []Triangle) (*MeshData, error) {
	if len(triangles) == 0 {
		return nil, errors.New("mesh has no triangles")
	}
	for i, tri := range triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("triangle %d: vertex index %d out of range [0,%d)", i, idx, len(vertices))
			}
		}
	}
	return &MeshData{Vertices: vertices, Triangles: triangles}, nil
}

// MeshFromKernel converts a flat kernel mesh into MeshData. Coincident
// vertices emitted per triangle by marching cubes are kept as-is.
func MeshFromKernel(m *kernel.Mesh) (*MeshData, error) {
	if m == nil || m.IsEmpty() {
		return nil, errors.New("kernel mesh is empty")
	}
	if len(m.Vertices)%3 != 0 || len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("kernel mesh has ragged arrays (%d vertex floats, %d indices)", len(m.Vertices), len(m.Indices))
	}
	vertices := make([]v3.Vec, m.VertexCount())
	for i := range vertices {
		vertices[i] = v3.Vec{
			X: float64(m.Vertices[i*3]),
			Y: float64(m.Vertices[i*3+1]),
			Z: float64(m.Vertices[i*3+2]),
		}
	}
	triangles := make([]Triangle, m.TriangleCount())
	for i := range triangles {
		triangles[i] = Triangle{int(m.Indices[i*3]), int(m.Indices[i*3+1]), int(m.Indices[i*3+2])}
	}
	return NewMeshData(vertices, triangles)
}

// meshShape is a MeshData instance placed at an offset.
type meshShape struct {
	data   *MeshData
	offset v3.Vec
	min    v3.Vec
	max    v3.Vec
}

func newMeshShape(data *MeshData, offset v3.Vec) *meshShape {
	s := &meshShape{data: data, offset: offset}
	inf := math.Inf(1)
	s.min = v3.Vec{X: inf, Y: inf, Z: inf}
	s.max = v3.Vec{X: -inf, Y: -inf, Z: -inf}
	for _, v := range data.Vertices {
		w := v.Add(offset)
		s.min = v3.Vec{X: math.Min(s.min.X, w.X), Y: math.Min(s.min.Y, w.Y), Z: math.Min(s.min.Z, w.Z)}
		s.max = v3.Vec{X: math.Max(s.max.X, w.X), Y: math.Max(s.max.Y, w.Y), Z: math.Max(s.max.Z, w.Z)}
	}
	return s
}

func (s *meshShape) corners(tri Triangle) (a, b, c v3.Vec) {
	return s.data.Vertices[tri[0]].Add(s.offset),
		s.data.Vertices[tri[1]].Add(s.offset),
		s.data.Vertices[tri[2]].Add(s.offset)
}

// boundsDistance is the distance from p to the mesh's bounding box. It never
// exceeds the true distance to the mesh.
func (s *meshShape) boundsDistance(p v3.Vec) float64 {
	dx := math.Max(math.Max(s.min.X-p.X, 0), p.X-s.max.X)
	dy := math.Max(math.Max(s.min.Y-p.Y, 0), p.Y-s.max.Y)
	dz := math.Max(math.Max(s.min.Z-p.Z, 0), p.Z-s.max.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// raycast intersects front faces only (Möller–Trumbore), so rays leaving the
// mesh from inside do not report a hit.
func (s *meshShape) raycast(origin, dir v3.Vec, maxDist float64) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, tri := range s.data.Triangles {
		a, b, c := s.corners(tri)
		e1 := b.Sub(a)
		e2 := c.Sub(a)
		n := geom.Normalize(e1.Cross(e2))
		if n.Dot(dir) >= 0 {
			continue
		}
		pv := dir.Cross(e2)
		det := e1.Dot(pv)
		if math.Abs(det) < 1e-12 {
			continue
		}
		inv := 1 / det
		tv := origin.Sub(a)
		u := tv.Dot(pv) * inv
		if u < 0 || u > 1 {
			continue
		}
		qv := tv.Cross(e1)
		v := dir.Dot(qv) * inv
		if v < 0 || u+v > 1 {
			continue
		}
		t := e2.Dot(qv) * inv
		if t < 0 || t > maxDist || t >= best.Distance {
			continue
		}
		best = Hit{Point: origin.Add(dir.MulScalar(t)), Normal: n, Distance: t}
		found = true
	}
	return best, found
}

// closestPoint returns the nearest point on any triangle.
func (s *meshShape) closestPoint(p v3.Vec) v3.Vec {
	best := p
	bestD2 := math.Inf(1)
	for _, tri := range s.data.Triangles {
		a, b, c := s.corners(tri)
		q := closestOnTriangle(p, a, b, c)
		if d2 := geom.Distance2(p, q); d2 < bestD2 {
			best, bestD2 = q, d2
		}
	}
	return best
}

// closestOnTriangle follows Ericson, Real-Time Collision Detection 5.1.5.
func closestOnTriangle(p, a, b, c v3.Vec) v3.Vec {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.MulScalar(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.MulScalar(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).MulScalar(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.MulScalar(v)).Add(ac.MulScalar(w))
}

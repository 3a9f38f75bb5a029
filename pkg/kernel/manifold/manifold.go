//go:build manifold

// Package manifold is a polygonal kernel.Kernel backed by the Manifold C
// library (https://github.com/elalish/manifold). Branch tubes come out as
// exact low-poly cylinders instead of marching cubes surfaces, which keeps
// meshes of long vines small.
//
// Requires manifoldc to be installed. Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/chazu/tendril/pkg/kernel"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)

// manifoldSolid owns a C ManifoldManifold.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	bbox := C.manifold_bounding_box(C.manifold_alloc_box(), s.ptr)
	defer C.manifold_delete_box(bbox)

	min = [3]float64{
		float64(C.manifold_box_min_x(bbox)),
		float64(C.manifold_box_min_y(bbox)),
		float64(C.manifold_box_min_z(bbox)),
	}
	max = [3]float64{
		float64(C.manifold_box_max_x(bbox)),
		float64(C.manifold_box_max_y(bbox)),
		float64(C.manifold_box_max_z(bbox)),
	}
	return min, max
}

// newSolid wraps ptr and frees it when the solid is collected.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

func solid(s kernel.Solid) *C.ManifoldManifold {
	return s.(*manifoldSolid).ptr
}

// ManifoldKernel implements kernel.Kernel with Manifold.
type ManifoldKernel struct {
	segments int
}

// New returns a kernel using DefaultSegments around each tube.
func New() (kernel.Kernel, error) {
	return NewWithSegments(DefaultSegments)
}

// NewWithSegments returns a kernel using n circular segments for spheres
// and for cylinders created with a non-positive segment count.
func NewWithSegments(n int) (kernel.Kernel, error) {
	if n < 3 {
		return nil, fmt.Errorf("manifold: need at least 3 segments, got %d", n)
	}
	return &ManifoldKernel{segments: n}, nil
}

// Box creates a box centered on the origin.
func (k *ManifoldKernel) Box(x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_cube(C.manifold_alloc_manifold(),
		C.double(x), C.double(y), C.double(z),
		C.int(1), // centered
	))
}

// Sphere creates a sphere centered on the origin.
func (k *ManifoldKernel) Sphere(radius float64) kernel.Solid {
	return newSolid(C.manifold_sphere(C.manifold_alloc_manifold(),
		C.double(radius), C.int(k.segments),
	))
}

// Cylinder creates a centered cylinder along Z.
func (k *ManifoldKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	if segments <= 0 {
		segments = k.segments
	}
	return newSolid(C.manifold_cylinder(C.manifold_alloc_manifold(),
		C.double(height),
		C.double(radius), C.double(radius),
		C.int(segments),
		C.int(1), // centered
	))
}

func (k *ManifoldKernel) Union(a, b kernel.Solid) kernel.Solid {
	return newSolid(C.manifold_union(C.manifold_alloc_manifold(), solid(a), solid(b)))
}

func (k *ManifoldKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return newSolid(C.manifold_difference(C.manifold_alloc_manifold(), solid(a), solid(b)))
}

func (k *ManifoldKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return newSolid(C.manifold_intersection(C.manifold_alloc_manifold(), solid(a), solid(b)))
}

func (k *ManifoldKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), solid(s),
		C.double(x), C.double(y), C.double(z),
	))
}

// Rotate takes Euler angles in degrees.
func (k *ManifoldKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return newSolid(C.manifold_rotate(C.manifold_alloc_manifold(), solid(s),
		C.double(x), C.double(y), C.double(z),
	))
}

// ToMesh reads the solid's MeshGL. Positions are the first three vertex
// properties; normals follow when present and are otherwise averaged from
// the faces.
func (k *ManifoldKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), solid(s))
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &kernel.Mesh{}, nil
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: %d vertex properties, want at least 3", numProp)
	}

	props := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&props[0])), meshGL)

	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	vertices := make([]float32, numVert*3)
	var normals []float32
	if numProp >= 6 {
		normals = make([]float32, numVert*3)
	}
	for i := 0; i < numVert; i++ {
		p := props[i*numProp:]
		copy(vertices[i*3:i*3+3], p[:3])
		if normals != nil {
			copy(normals[i*3:i*3+3], p[3:6])
		}
	}
	if normals == nil {
		normals = vertexNormals(vertices, indices)
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// vertexNormals averages the area-weighted face normals around each vertex.
func vertexNormals(vertices []float32, indices []uint32) []float32 {
	acc := make([]float64, len(vertices))
	at := func(i uint32) (float64, float64, float64) {
		return float64(vertices[i*3]), float64(vertices[i*3+1]), float64(vertices[i*3+2])
	}
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		ax, ay, az := at(i0)
		bx, by, bz := at(i1)
		cx, cy, cz := at(i2)
		e1x, e1y, e1z := bx-ax, by-ay, bz-az
		e2x, e2y, e2z := cx-ax, cy-ay, cz-az
		nx := e1y*e2z - e1z*e2y
		ny := e1z*e2x - e1x*e2z
		nz := e1x*e2y - e1y*e2x
		for _, idx := range [3]uint32{i0, i1, i2} {
			acc[idx*3] += nx
			acc[idx*3+1] += ny
			acc[idx*3+2] += nz
		}
	}

	out := make([]float32, len(vertices))
	for i := 0; i+2 < len(acc); i += 3 {
		l := math.Sqrt(acc[i]*acc[i] + acc[i+1]*acc[i+1] + acc[i+2]*acc[i+2])
		if l > 1e-12 {
			out[i] = float32(acc[i] / l)
			out[i+1] = float32(acc[i+1] / l)
			out[i+2] = float32(acc[i+2] / l)
		}
	}
	return out
}

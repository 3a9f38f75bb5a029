package growth

import (
	"github.com/chazu/tendril/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// fakeQuery is a scripted scene.Query.
type fakeQuery struct {
	handles  []scene.Handle
	closest  map[int]v3.Vec
	vertices map[int][]v3.Vec
	offsets  map[int]v3.Vec
	height   float64

	// hits are returned by successive Raycast calls; nil entries miss.
	hits    []*scene.Hit
	rays    int
	surface *scene.Hit // answer for every RaycastSurface call

	vertexCalls int
}

func (f *fakeQuery) Overlap(v3.Vec, float64, scene.Filter) []scene.Handle {
	return f.handles
}

func (f *fakeQuery) ClosestPoint(h scene.Handle, p v3.Vec) v3.Vec {
	if c, ok := f.closest[h.ID]; ok {
		return c
	}
	return p
}

func (f *fakeQuery) Raycast(v3.Vec, v3.Vec, float64, scene.Filter) (scene.Hit, bool) {
	i := f.rays
	f.rays++
	if i >= len(f.hits) || f.hits[i] == nil {
		return scene.Hit{}, false
	}
	return *f.hits[i], true
}

func (f *fakeQuery) RaycastSurface(scene.Handle, v3.Vec, v3.Vec, float64) (scene.Hit, bool) {
	if f.surface == nil {
		return scene.Hit{}, false
	}
	return *f.surface, true
}

func (f *fakeQuery) SampleHeight(scene.Handle, float64, float64) float64 {
	return f.height
}

func (f *fakeQuery) MeshVertices(h scene.Handle) []v3.Vec {
	f.vertexCalls++
	return f.vertices[h.ID]
}

func (f *fakeQuery) TransformPoint(h scene.Handle, local v3.Vec) v3.Vec {
	return local.Add(f.offsets[h.ID])
}

// fixedRand returns the same values on every draw.
type fixedRand struct {
	f float64
	i int
}

func (r fixedRand) Float64() float64 { return r.f }

func (r fixedRand) Intn(n int) int {
	if r.i >= n {
		return n - 1
	}
	return r.i
}

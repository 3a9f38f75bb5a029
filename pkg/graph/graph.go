package graph

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrRootDead is returned when appending to a dead root.
var ErrRootDead = errors.New("root is dead")

// NoParent marks the seed root, which was not spawned from another root.
const NoParent = -1

// Root is a single growing branch.
type Root struct {
	Nodes []Node `json:"nodes"`
	Alive bool   `json:"alive"`
	// Parents counts the branch generations above this root.
	Parents int `json:"parents"`
	// ChildCount counts roots spawned from this one.
	ChildCount int `json:"child_count"`
	// ForceMinLength overrides the profile's minimum length for roots
	// seeded by the host. Values <= 0 mean no override.
	ForceMinLength float64 `json:"force_min_length"`
	// Parent and ParentNode index the root and node this root forked from,
	// or NoParent.
	Parent     int `json:"parent"`
	ParentNode int `json:"parent_node"`

	segments      []v3.Vec
	segmentsValid bool
}

// NewRoot returns a live root holding a single node.
func NewRoot(first Node) *Root {
	return &Root{
		Nodes:      []Node{first},
		Alive:      true,
		Parent:     NoParent,
		ParentNode: NoParent,
	}
}

// Len returns the number of nodes.
func (r *Root) Len() int {
	return len(r.Nodes)
}

// First returns the root's first node.
func (r *Root) First() Node {
	return r.Nodes[0]
}

// Last returns the root's most recent node.
func (r *Root) Last() Node {
	return r.Nodes[len(r.Nodes)-1]
}

// Append adds a node to a live root and invalidates the cached segments.
func (r *Root) Append(n Node) error {
	if !r.Alive {
		return ErrRootDead
	}
	r.Nodes = append(r.Nodes, n)
	r.Invalidate()
	return nil
}

// Kill marks the root dead. Death is permanent.
func (r *Root) Kill() {
	r.Alive = false
}

// Invalidate drops the cached line segments.
func (r *Root) Invalidate() {
	r.segmentsValid = false
}

// LineSegments returns consecutive node pairs in world space as a flat list
// (a0, b0, a1, b1, ...). The list is cached until the next append.
func (r *Root) LineSegments(seed v3.Vec) []v3.Vec {
	if r.segmentsValid {
		return r.segments
	}
	r.segments = r.segments[:0]
	for i := 1; i < len(r.Nodes); i++ {
		r.segments = append(r.segments,
			r.Nodes[i-1].Position.Add(seed),
			r.Nodes[i].Position.Add(seed))
	}
	r.segmentsValid = true
	return r.segments
}

// Graph is one vine: a seed position and its roots in insertion order.
type Graph struct {
	Seed    v3.Vec  `json:"seed"`
	Roots   []*Root `json:"roots"`
	Growing bool    `json:"growing"`
	// MeshDuringGrowth asks the host to regenerate geometry after each step.
	MeshDuringGrowth bool `json:"mesh_during_growth"`
	// Visible graphs take part in merges.
	Visible bool `json:"visible"`
}

// New seeds a graph at seed with a single root whose only node sits at the
// local origin.
func New(seed, direction, adhesion v3.Vec) *Graph {
	g := &Graph{
		Seed:    seed,
		Growing: true,
		Visible: true,
	}
	g.AddRoot(NewRoot(Node{
		Direction: direction,
		Adhesion:  adhesion,
		Climbing:  true,
	}))
	return g
}

// AddRoot appends a root and returns its index.
func (g *Graph) AddRoot(r *Root) int {
	g.Roots = append(g.Roots, r)
	return len(g.Roots) - 1
}

// Root returns the root at index i, or an error if out of range.
func (g *Graph) Root(i int) (*Root, error) {
	if i < 0 || i >= len(g.Roots) {
		return nil, fmt.Errorf("root index %d out of range [0,%d)", i, len(g.Roots))
	}
	return g.Roots[i], nil
}

// LiveCount returns the number of live roots.
func (g *Graph) LiveCount() int {
	n := 0
	for _, r := range g.Roots {
		if r.Alive {
			n++
		}
	}
	return n
}

// NodeCount returns the total number of nodes across all roots.
func (g *Graph) NodeCount() int {
	n := 0
	for _, r := range g.Roots {
		n += len(r.Nodes)
	}
	return n
}

// UpdateGrowing clears Growing once no root is alive. It never sets it.
func (g *Graph) UpdateGrowing() bool {
	if g.Growing && g.LiveCount() == 0 {
		g.Growing = false
	}
	return g.Growing
}

// Stop halts growth without killing roots.
func (g *Graph) Stop() {
	g.Growing = false
}

// ToWorld converts a seed-relative position into world space.
func (g *Graph) ToWorld(local v3.Vec) v3.Vec {
	return local.Add(g.Seed)
}

// ToLocal converts a world position into the seed-relative frame.
func (g *Graph) ToLocal(world v3.Vec) v3.Vec {
	return world.Sub(g.Seed)
}

// LineSegments returns the world-space segments of every root.
func (g *Graph) LineSegments() []v3.Vec {
	var out []v3.Vec
	for _, r := range g.Roots {
		out = append(out, r.LineSegments(g.Seed)...)
	}
	return out
}

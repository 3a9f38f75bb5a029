package growth

import (
	"fmt"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/profile"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ForceGrowth appends a node at worldPos to the first root of g, bypassing
// the organic step. It is the entry point for painting a vine along a
// surface; normal is the surface normal under the brush.
func ForceGrowth(g *graph.Graph, worldPos, normal v3.Vec) error {
	if g == nil || len(g.Roots) == 0 || g.Roots[0].Len() == 0 {
		return fmt.Errorf("%w: graph has no seed root", ErrInvalidInput)
	}
	if !geom.IsFinite(worldPos) || !geom.IsFinite(normal) {
		return fmt.Errorf("%w: non-finite brush position", ErrInvalidInput)
	}
	r := g.Roots[0]
	last := r.Last()
	pos := g.ToLocal(worldPos)
	growVec := pos.Sub(last.Position)
	d := growVec.Length()

	dir := geom.Normalize(last.Direction.MulScalar(0.5).Add(geom.Normalize(growVec).MulScalar(0.5)))
	if dir == (v3.Vec{}) {
		dir = last.Direction
	}
	err := r.Append(graph.Node{
		Position:    pos,
		Direction:   dir,
		Adhesion:    normal.MulScalar(-1),
		Length:      last.Length + d,
		ClimbLength: last.ClimbLength + d,
		Climbing:    true,
	})
	if err != nil {
		return fmt.Errorf("force growth: %w", err)
	}
	return nil
}

// ForceRandomBranch forks a root from a random node of the first root of g.
// The fork skips the organic gates and lives for at least a random length
// between 1.5*MinLength and MaxLength past that node.
func (e *Engine) ForceRandomBranch(g *graph.Graph, p profile.Profile) bool {
	if g == nil || len(g.Roots) == 0 || g.Roots[0].Len() == 0 {
		return false
	}
	r := g.Roots[0]
	idx := e.rand.Intn(r.Len())
	length := r.Nodes[idx].ClimbLength + geom.LerpScalar(p.MinLength*1.5, p.MaxLength, e.rand.Float64())
	if !e.spawner.TryGrow(g, p, 0, idx, length) {
		return false
	}
	e.log.Debug("forced branch", "node", idx, "min_length", length, "roots", len(g.Roots))
	return true
}

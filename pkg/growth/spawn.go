package growth

import (
	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/profile"
)

// branchWeight scales the stochastic acceptance draw.
const branchWeight = 1.0

// Spawner forks new roots off existing nodes.
type Spawner struct {
	rand Rand
}

// NewSpawner returns a spawner drawing from r.
func NewSpawner(r Rand) *Spawner {
	return &Spawner{rand: r}
}

// TryGrow tries to fork a new root from node nodeIndex of root rootIndex.
//
// With forcedMinLength <= 0 the fork is organic and must pass the
// population, topology, length and random gates. A positive forcedMinLength
// skips the gates, so forced forks always succeed when the indices are
// valid, and becomes the new root's minimum length before it may die of
// floating.
func (s *Spawner) TryGrow(g *graph.Graph, p profile.Profile, rootIndex, nodeIndex int, forcedMinLength float64) bool {
	root, err := g.Root(rootIndex)
	if err != nil || nodeIndex < 0 || nodeIndex >= root.Len() {
		return false
	}
	from := root.Nodes[nodeIndex]
	forced := forcedMinLength > 0

	if !forced && !s.accept(g, p, rootIndex, from) {
		return false
	}

	first := graph.Node{
		Position:  from.Position,
		Direction: geom.Normalize(geom.Lerp(from.Direction, geom.Up, 0.5)),
		Adhesion:  from.Adhesion,
		Climbing:  true,
	}
	if !forced {
		first.ClimbLength = from.ClimbLength
		first.FloatLength = from.FloatLength
	}

	child := graph.NewRoot(first)
	child.Parents = root.Parents + 1
	child.ForceMinLength = forcedMinLength
	child.Parent = rootIndex
	child.ParentNode = nodeIndex
	g.AddRoot(child)
	root.ChildCount++
	return true
}

func (s *Spawner) accept(g *graph.Graph, p profile.Profile, rootIndex int, from graph.Node) bool {
	root := g.Roots[rootIndex]
	bp := p.BranchingProbability

	if len(g.Roots) >= p.MaxBranchesTotal {
		return false
	}
	if float64(nearbyRoots(g, rootIndex, from, p.StepDistance)) > bp*2.5 {
		return false
	}
	if float64(root.ChildCount) > bp*3.5 {
		return false
	}
	if root.Len() < 3 {
		return false
	}
	if float64(root.Parents) > bp*9 {
		return false
	}
	if p.MaxLength-from.ClimbLength < p.MinLength {
		return false
	}
	return s.rand.Float64()*geom.Clamp(branchWeight, 0, 1-bp) <= bp
}

// nearbyRoots counts roots other than skip that start within one step of
// from.
func nearbyRoots(g *graph.Graph, skip int, from graph.Node, step float64) int {
	n := 0
	for i, r := range g.Roots {
		if i == skip || r.Len() == 0 {
			continue
		}
		if geom.Distance2(r.First().Position, from.Position) < step*step {
			n++
		}
	}
	return n
}

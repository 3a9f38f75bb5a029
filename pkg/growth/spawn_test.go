package growth

import (
	"testing"

	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/profile"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightGraph returns a graph whose seed root has n nodes climbing +Y one
// unit apart.
func straightGraph(n int) *graph.Graph {
	g := graph.New(v3.Vec{}, v3.Vec{Y: 1}, v3.Vec{Z: -1})
	r := g.Roots[0]
	for i := 1; i < n; i++ {
		l := float64(i)
		_ = r.Append(graph.Node{
			Position:    v3.Vec{Y: l},
			Direction:   v3.Vec{Y: 1},
			Adhesion:    v3.Vec{Z: -1},
			Length:      l,
			ClimbLength: l,
			FloatLength: 0.5 * l,
		})
	}
	return g
}

func branchingProfile() profile.Profile {
	p := profile.Default()
	p.BranchingProbability = 0.5
	p.MaxLength = 10
	return p
}

func TestTryGrowOrganic(t *testing.T) {
	g := straightGraph(4)
	s := NewSpawner(fixedRand{f: 0})
	p := branchingProfile()

	require.True(t, s.TryGrow(g, p, 0, 2, 0))
	require.Len(t, g.Roots, 2)

	child := g.Roots[1]
	first := child.First()
	assert.Equal(t, v3.Vec{Y: 2}, first.Position)
	assert.Equal(t, v3.Vec{Z: -1}, first.Adhesion)
	assertVec(t, v3.Vec{Y: 1}, first.Direction, 1e-12)
	assert.Equal(t, 2.0, first.ClimbLength, "organic forks keep climb length")
	assert.Equal(t, 1.0, first.FloatLength, "organic forks keep float length")
	assert.Zero(t, first.Length)
	assert.True(t, first.Climbing)

	assert.Equal(t, 1, child.Parents)
	assert.Equal(t, 0, child.Parent)
	assert.Equal(t, 2, child.ParentNode)
	assert.Zero(t, child.ForceMinLength)
	assert.Equal(t, 1, g.Roots[0].ChildCount)
	assert.Empty(t, graph.Validate(g))
}

func TestTryGrowBlendsDirectionUp(t *testing.T) {
	g := straightGraph(4)
	g.Roots[0].Nodes[1].Direction = v3.Vec{X: 1}
	require.True(t, NewSpawner(fixedRand{}).TryGrow(g, branchingProfile(), 0, 1, 0))

	d := g.Roots[1].First().Direction
	assertVec(t, v3.Vec{X: 0.7071, Y: 0.7071}, d, 1e-4)
}

func TestTryGrowGates(t *testing.T) {
	tests := []struct {
		name   string
		rand   float64
		node   int
		modify func(g *graph.Graph, p *profile.Profile)
	}{
		{"branch limit", 0, 2, func(g *graph.Graph, p *profile.Profile) { p.MaxBranchesTotal = 1 }},
		{"crowded", 0, 0, func(g *graph.Graph, p *profile.Profile) {
			g.AddRoot(graph.NewRoot(graph.Node{Position: v3.Vec{X: 0.01}}))
			g.AddRoot(graph.NewRoot(graph.Node{Position: v3.Vec{Z: 0.01}}))
		}},
		{"too many children", 0, 2, func(g *graph.Graph, p *profile.Profile) { g.Roots[0].ChildCount = 2 }},
		{"too short", 0, 1, func(g *graph.Graph, p *profile.Profile) {
			g.Roots[0].Nodes = g.Roots[0].Nodes[:2]
		}},
		{"too deep", 0, 2, func(g *graph.Graph, p *profile.Profile) { g.Roots[0].Parents = 5 }},
		{"no length budget", 0, 3, func(g *graph.Graph, p *profile.Profile) { p.MaxLength = 3.5 }},
		{"unlucky", 0.99, 2, func(g *graph.Graph, p *profile.Profile) { p.BranchingProbability = 0.25 }},
		{"bad node", 0, 9, func(g *graph.Graph, p *profile.Profile) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := straightGraph(4)
			p := branchingProfile()
			tt.modify(g, &p)
			roots, children := len(g.Roots), g.Roots[0].ChildCount

			assert.False(t, NewSpawner(fixedRand{f: tt.rand}).TryGrow(g, p, 0, tt.node, 0))
			assert.Len(t, g.Roots, roots)
			assert.Equal(t, children, g.Roots[0].ChildCount)
		})
	}
}

func TestTryGrowNearbyCountIgnoresOwnRoot(t *testing.T) {
	// The candidate sits on the seed root's own first node.
	g := straightGraph(4)
	p := branchingProfile()
	p.BranchingProbability = 0.1
	assert.True(t, NewSpawner(fixedRand{}).TryGrow(g, p, 0, 0, 0))
}

func TestTryGrowForcedSkipsGates(t *testing.T) {
	g := straightGraph(2)
	p := profile.Default()
	p.MaxBranchesTotal = 1

	require.True(t, NewSpawner(fixedRand{f: 0.99}).TryGrow(g, p, 0, 1, 4))
	child := g.Roots[1]
	assert.Equal(t, 4.0, child.ForceMinLength)
	assert.Zero(t, child.First().ClimbLength, "forced forks restart climb length")
	assert.Zero(t, child.First().FloatLength)
}

func TestTryGrowNeverExceedsMaxBranches(t *testing.T) {
	g := straightGraph(5)
	p := branchingProfile()
	p.BranchingProbability = 1
	p.MaxBranchesTotal = 3
	s := NewSpawner(fixedRand{})

	for i := 0; i < 20; i++ {
		s.TryGrow(g, p, i%len(g.Roots), 0, 0)
		s.TryGrow(g, p, 0, 4, 0)
	}
	assert.LessOrEqual(t, len(g.Roots), p.MaxBranchesTotal)
}

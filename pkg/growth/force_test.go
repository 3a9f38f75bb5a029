package growth

import (
	"testing"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/profile"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceGrowth(t *testing.T) {
	g := graph.New(v3.Vec{X: 1}, geom.Up, v3.Vec{})

	require.NoError(t, ForceGrowth(g, v3.Vec{X: 1, Y: 1}, v3.Vec{Z: 1}))

	r := g.Roots[0]
	require.Equal(t, 2, r.Len())
	n := r.Last()
	assert.Equal(t, v3.Vec{Y: 1}, n.Position)
	assert.Equal(t, v3.Vec{Z: -1}, n.Adhesion)
	assert.Equal(t, 1.0, n.Length)
	assert.Equal(t, 1.0, n.ClimbLength)
	assert.Zero(t, n.FloatLength)
	assert.True(t, n.Climbing)
	assertVec(t, geom.Up, n.Direction, 1e-12)

	segs := r.LineSegments(g.Seed)
	require.Len(t, segs, 2)
	assert.Equal(t, v3.Vec{X: 1, Y: 1}, segs[1])
}

func TestForceGrowthResetsFloat(t *testing.T) {
	g := straightGraph(3)
	require.NoError(t, ForceGrowth(g, v3.Vec{X: 1, Y: 2}, geom.Up))
	assert.Zero(t, g.Roots[0].Last().FloatLength)
	assert.Equal(t, 3.0, g.Roots[0].Last().ClimbLength)
}

func TestForceGrowthErrors(t *testing.T) {
	assert.ErrorIs(t, ForceGrowth(nil, v3.Vec{}, geom.Up), ErrInvalidInput)

	g := graph.New(v3.Vec{}, geom.Up, v3.Vec{})
	g.Roots[0].Kill()
	assert.ErrorIs(t, ForceGrowth(g, v3.Vec{Y: 1}, geom.Up), graph.ErrRootDead)
}

func TestForceRandomBranch(t *testing.T) {
	e := NewEngine(&fakeQuery{}, WithRand(fixedRand{f: 0.5, i: 1}))
	g := straightGraph(3)
	p := profile.Default()
	p.MaxBranchesTotal = 1

	require.True(t, e.ForceRandomBranch(g, p))
	require.Len(t, g.Roots, 2)
	child := g.Roots[1]
	// node 1 has climb length 1; lerp(1.5, 6, 0.5) = 3.75.
	assert.InDelta(t, 4.75, child.ForceMinLength, 1e-12)
	assert.Equal(t, 1, child.ParentNode)
	assert.Equal(t, v3.Vec{Y: 1}, child.First().Position)
	assert.Zero(t, child.First().ClimbLength)
}

func TestForceRandomBranchEmptyGraph(t *testing.T) {
	e := NewEngine(&fakeQuery{})
	assert.False(t, e.ForceRandomBranch(&graph.Graph{}, profile.Default()))
}

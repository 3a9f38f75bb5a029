package growth

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/profile"
	"github.com/chazu/tendril/pkg/scene"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// longProfile keeps straightGraph roots alive.
func longProfile() profile.Profile {
	p := profile.Default()
	p.MaxLength = 10
	p.MaxFloatLength = 10
	return p
}

// wallScene is a floor with a wall standing on it at x = 1.
func wallScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc := scene.New()
	floor, err := sdf.Box3D(v3.Vec{X: 10, Y: 1, Z: 10}, 0)
	require.NoError(t, err)
	_, err = sc.AddSolid("floor", sdf.Transform3D(floor, sdf.Translate3d(v3.Vec{Y: -0.5})), 0)
	require.NoError(t, err)
	wall, err := sdf.Box3D(v3.Vec{X: 0.2, Y: 4, Z: 4}, 0)
	require.NoError(t, err)
	_, err = sc.AddSolid("wall", sdf.Transform3D(wall, sdf.Translate3d(v3.Vec{X: 1.1, Y: 2})), 0)
	require.NoError(t, err)
	return sc
}

func TestStepInvalidInput(t *testing.T) {
	e := NewEngine(&fakeQuery{})
	p := profile.Default()

	bad := p
	bad.StepDistance = 0

	tests := []struct {
		name string
		g    *graph.Graph
		p    profile.Profile
	}{
		{"nil graph", nil, p},
		{"no roots", &graph.Graph{Growing: true}, p},
		{"empty root", &graph.Graph{Growing: true, Roots: []*graph.Root{{Alive: true}}}, p},
		{"bad profile", graph.New(v3.Vec{}, geom.Up, v3.Vec{}), bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := 0
			if tt.g != nil {
				before = tt.g.NodeCount()
			}
			_, err := e.Step(tt.g, tt.p)
			assert.ErrorIs(t, err, ErrInvalidInput)
			if tt.g != nil {
				assert.Equal(t, before, tt.g.NodeCount(), "graph was mutated")
			}
		})
	}
}

func TestStepGrowsInLocalSpace(t *testing.T) {
	e := NewEngine(&fakeQuery{}, WithRand(NewRand(1)))
	g := graph.New(v3.Vec{X: 10}, geom.Up, v3.Vec{})
	p := profile.Default()

	rep, err := e.Step(g, p)
	require.NoError(t, err)
	assert.Equal(t, Report{Grown: 1, Growing: true}, rep)

	n := g.Roots[0].Last()
	assert.InDelta(t, p.StepDistance, n.Position.Length(), 1e-9, "first step has no gravity")
	assert.InDelta(t, p.StepDistance, n.Length, 1e-9)
	assert.InDelta(t, 1, n.Direction.Length(), 1e-9)
	assert.False(t, n.Climbing)
}

func TestStepAdhesionFallsBackToPrevious(t *testing.T) {
	e := NewEngine(&fakeQuery{})
	g := graph.New(v3.Vec{}, geom.Up, v3.Vec{Z: -1})

	_, err := e.Step(g, profile.Default())
	require.NoError(t, err)
	assert.Equal(t, v3.Vec{Z: -1}, g.Roots[0].Last().Adhesion)
}

func TestStepNoSurfacesScenario(t *testing.T) {
	e := NewEngine(scene.New(), WithRand(NewRand(42)))
	g := graph.New(v3.Vec{}, geom.Up, v3.Vec{})
	p := profile.Default()
	p.MaxBranchesTotal = 1

	for i := 0; i < 2000 && g.Growing; i++ {
		_, err := e.Step(g, p)
		require.NoError(t, err)
	}
	require.False(t, g.Growing, "branch never died")

	r := g.Roots[0]
	require.False(t, r.Alive)
	require.Greater(t, r.Len(), 2)
	travelled := 0.0
	for i := 1; i < r.Len(); i++ {
		prev, n := r.Nodes[i-1], r.Nodes[i]
		travelled += geom.Distance(prev.Position, n.Position)
		assert.False(t, n.Climbing)
		assert.InDelta(t, travelled, n.FloatLength, 1e-9)
		assert.InDelta(t, n.ClimbLength, n.FloatLength, 1e-9)
	}

	last, prev := r.Last(), r.Nodes[r.Len()-2]
	assert.Greater(t, last.ClimbLength, p.MinLength)
	assert.Greater(t, last.FloatLength, p.MaxFloatLength)
	assert.False(t, prev.ClimbLength > p.MinLength && prev.FloatLength > p.MaxFloatLength,
		"branch outlived its float limit")
}

func TestStepPropertiesOverScene(t *testing.T) {
	e := NewEngine(wallScene(t), WithRand(NewRand(5)))
	g := graph.New(v3.Vec{Y: 0.02}, geom.Up, v3.Vec{Y: -1})
	p := profile.Default()
	p.BranchingProbability = 0.5

	climbed := false
	wasGrowing := true
	lens := map[int]int{}
	dead := map[int]bool{}
	for step := 0; step < 150; step++ {
		rep, err := e.Step(g, p)
		require.NoError(t, err)
		require.LessOrEqual(t, rep.Spawned, 1)
		require.LessOrEqual(t, len(g.Roots), p.MaxBranchesTotal)
		if !wasGrowing {
			require.False(t, g.Growing, "growth restarted")
		}
		wasGrowing = g.Growing

		for ri, r := range g.Roots {
			if dead[ri] {
				require.Equal(t, lens[ri], r.Len(), "dead root %d grew", ri)
			}
			dead[ri] = !r.Alive
			lens[ri] = r.Len()
		}
		require.False(t, graph.HasErrors(graph.Validate(g)), "step %d: %v", step, graph.Validate(g))
	}

	for _, r := range g.Roots {
		for i := 1; i < r.Len(); i++ {
			prev, n := r.Nodes[i-1], r.Nodes[i]
			d := geom.Distance(prev.Position, n.Position)
			assert.InDelta(t, prev.Length+d, n.Length, 1e-9)
			assert.InDelta(t, prev.ClimbLength+d, n.ClimbLength, 1e-9)
			if n.Climbing {
				climbed = true
				assert.Zero(t, n.FloatLength)
			} else {
				assert.InDelta(t, prev.FloatLength+d, n.FloatLength, 1e-9)
			}
		}
	}
	assert.True(t, climbed, "vine never touched the floor or wall")
}

func TestStepExpiresLongRoot(t *testing.T) {
	e := NewEngine(&fakeQuery{})
	g := straightGraph(8)
	p := profile.Default()
	p.MaxFloatLength = 10

	rep, err := e.Step(g, p)
	require.NoError(t, err)
	assert.Equal(t, Report{Died: 1}, rep)
	assert.Equal(t, 8, g.Roots[0].Len())
	assert.False(t, g.Growing)

	rep, err = e.Step(g, p)
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)
	assert.Equal(t, 8, g.Roots[0].Len())
}

func TestStepForceMinLengthDelaysFloatDeath(t *testing.T) {
	e := NewEngine(&fakeQuery{})
	p := profile.Default()
	p.MaxBranchesTotal = 1

	g := straightGraph(4) // climb 3, float 1.5
	g.Roots[0].ForceMinLength = 5
	_, err := e.Step(g, p)
	require.NoError(t, err)
	assert.Equal(t, 5, g.Roots[0].Len())

	g = straightGraph(4)
	_, err = e.Step(g, p)
	require.NoError(t, err)
	assert.False(t, g.Roots[0].Alive)
	assert.Equal(t, 4, g.Roots[0].Len())
}

func TestStepWedgedRootDies(t *testing.T) {
	q := &fakeQuery{}
	for i := 0; i < 2*MaxDeflections; i++ {
		q.hits = append(q.hits, &scene.Hit{Normal: v3.Vec{X: 1}})
	}
	e := NewEngine(q)
	g := graph.New(v3.Vec{}, geom.Up, v3.Vec{})

	rep, err := e.Step(g, profile.Default())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Died)
	assert.Equal(t, 1, g.Roots[0].Len())
	assert.False(t, g.Growing)
}

func TestStepSingleSpawnPerStep(t *testing.T) {
	e := NewEngine(&fakeQuery{}, WithRand(fixedRand{}))
	p := longProfile()
	p.BranchingProbability = 1

	g := straightGraph(4)
	other := graph.NewRoot(graph.Node{Position: v3.Vec{X: 5}, Direction: geom.Up})
	_ = other.Append(graph.Node{Position: v3.Vec{X: 5, Y: 1}, Direction: geom.Up, Length: 1, ClimbLength: 1})
	_ = other.Append(graph.Node{Position: v3.Vec{X: 5, Y: 2}, Direction: geom.Up, Length: 2, ClimbLength: 2})
	g.AddRoot(other)

	rep, err := e.Step(g, p)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Spawned)
	assert.Equal(t, 1, rep.Grown)
	assert.Len(t, g.Roots, 3)
	assert.Equal(t, 5, g.Roots[0].Len())
	assert.Equal(t, 3, g.Roots[1].Len(), "roots after a spawn wait for the next step")
}

func TestStepLogsDeaths(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := NewEngine(&fakeQuery{}, WithLogger(log))

	_, err := e.Step(straightGraph(8), profile.Default())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "root expired")
}

func TestGravityGrowsWithFloatLength(t *testing.T) {
	p := profile.Default()
	p.PrimaryWeight, p.RandomWeight, p.AdhesionWeight = 0, 0, 0

	drop := func(float float64) float64 {
		e := NewEngine(&fakeQuery{}, WithRand(fixedRand{f: 0.5}))
		g := graph.New(v3.Vec{}, geom.Up, v3.Vec{})
		g.Roots[0].Nodes[0].ClimbLength = float
		g.Roots[0].Nodes[0].FloatLength = float
		_, err := e.Step(g, p)
		require.NoError(t, err)
		return -g.Roots[0].Last().Position.Y
	}
	// With every draw at 0.5 the random wander points along -X, so the
	// whole vertical drop is gravity.
	low, high := drop(0.1), drop(0.9)
	assert.Greater(t, high, low)
	want := p.StepDistance * p.GravityWeight * math.Pow(0.9/p.MaxFloatLength, 0.7)
	assert.InDelta(t, want, high, 1e-9)
}

package growth

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/chazu/tendril/pkg/geom"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/profile"
	"github.com/chazu/tendril/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrInvalidInput is wrapped by errors about malformed graphs or profiles.
var ErrInvalidInput = errors.New("invalid growth input")

// minAdhesion2 is the squared length below which a fresh adhesion vector is
// replaced by the previous node's.
const minAdhesion2 = 0.01

// minRandomWeight keeps a little wander in every branch.
const minRandomWeight = 0.01

// Engine steps growth graphs over a scene.
type Engine struct {
	q       scene.Query
	rand    Rand
	sampler *Sampler
	spawner *Spawner
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source. The default is NewRand(1).
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithSampler shares an adhesion sampler, typically one the host refreshes.
func WithSampler(s *Sampler) Option {
	return func(e *Engine) { e.sampler = s }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine returns an engine querying q.
func NewEngine(q scene.Query, opts ...Option) *Engine {
	e := &Engine{q: q}
	for _, opt := range opts {
		opt(e)
	}
	if e.rand == nil {
		e.rand = NewRand(1)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.sampler == nil {
		e.sampler = NewSampler(q)
		e.sampler.Refresh(e.rand)
	}
	e.spawner = NewSpawner(e.rand)
	return e
}

// Sampler returns the engine's adhesion sampler.
func (e *Engine) Sampler() *Sampler {
	return e.sampler
}

// Rand returns the engine's random source.
func (e *Engine) Rand() Rand {
	return e.rand
}

// Report summarises one Step.
type Report struct {
	Grown   int  // roots that received a node
	Died    int  // roots that died this step
	Spawned int  // roots forked this step, at most one
	Growing bool // graph still growing after the step
}

// Step advances every live root of g by one node, in root order.
//
// Roots that exceed their length limits, or whose segment cannot be
// resolved against the scene, die without growing. After each root grows,
// one of its nodes chosen at random is offered to the spawner; once a fork
// succeeds the remaining roots wait for the next Step.
//
// Step returns an error wrapping ErrInvalidInput, without touching g, when g
// or p is malformed.
func (e *Engine) Step(g *graph.Graph, p profile.Profile) (Report, error) {
	if err := checkInput(g, p); err != nil {
		return Report{}, err
	}
	if !g.UpdateGrowing() {
		return Report{}, nil
	}

	var rep Report
	for i := 0; i < len(g.Roots); i++ {
		r := g.Roots[i]
		if !r.Alive {
			continue
		}
		last := r.Last()
		if expired(r, last, p) {
			r.Kill()
			rep.Died++
			e.log.Debug("root expired", "root", i, "climb_length", last.ClimbLength, "float_length", last.FloatLength)
			continue
		}

		node, ok := e.grow(g, r, last, p)
		if !ok {
			r.Kill()
			rep.Died++
			e.log.Debug("root wedged", "root", i, "nodes", r.Len())
			continue
		}
		if err := r.Append(node); err != nil {
			return rep, fmt.Errorf("step root %d: %w", i, err)
		}
		rep.Grown++

		if e.spawner.TryGrow(g, p, i, e.rand.Intn(r.Len()), 0) {
			rep.Spawned++
			e.log.Debug("root spawned", "parent", i, "roots", len(g.Roots))
			break
		}
	}
	rep.Growing = g.UpdateGrowing()
	return rep, nil
}

// expired reports whether a root has outgrown its length limits.
func expired(r *graph.Root, last graph.Node, p profile.Profile) bool {
	if last.ClimbLength > p.MaxLength {
		return true
	}
	return last.ClimbLength > math.Max(r.ForceMinLength, p.MinLength) &&
		last.FloatLength > p.MaxFloatLength
}

// grow computes the next node of r. It reports false if the proposed
// segment deadlocks against the scene.
func (e *Engine) grow(g *graph.Graph, r *graph.Root, last graph.Node, p profile.Profile) (graph.Node, bool) {
	primary := geom.Normalize(last.Direction.MulScalar(2).Add(geom.Up))

	first := r.First()
	explore := geom.ClampLength(last.Position.Sub(first.Position), 1)
	explore = explore.MulScalar(geom.PingPong(first.Position.Length2()*float64(r.Parents)+last.ClimbLength*0.69, 1))
	random := geom.Normalize(onUnitSphere(e.rand).MulScalar(0.5).Add(explore))

	adhesion := e.sampler.Compute(g.ToWorld(last.Position), p)
	if adhesion.Length2() <= minAdhesion2 {
		adhesion = last.Adhesion
	}

	growVec := geom.Normalize(
		primary.MulScalar(p.PrimaryWeight).
			Add(random.MulScalar(math.Max(minRandomWeight, p.RandomWeight))).
			Add(adhesion.MulScalar(p.AdhesionWeight)),
	).MulScalar(p.StepDistance)

	gravity := geom.Down.MulScalar(p.StepDistance * p.GravityWeight * math.Pow(last.FloatLength/p.MaxFloatLength, 0.7))

	proposed := last.Position.Add(growVec).Add(gravity)
	res := Resolve(e.q, CollisionPushDistance, g.ToWorld(last.Position), g.ToWorld(proposed), p.CollisionMask)
	if !res.OK {
		return graph.Node{}, false
	}

	pos := g.ToLocal(res.Position)
	effective := pos.Sub(last.Position).Sub(gravity)
	travelled := geom.Distance(last.Position, pos)

	dir := geom.Normalize(last.Direction.MulScalar(0.5).Add(geom.Normalize(effective).MulScalar(0.5)))
	if dir == (v3.Vec{}) {
		dir = last.Direction
	}

	node := graph.Node{
		Position:    pos,
		Direction:   dir,
		Adhesion:    adhesion,
		Length:      last.Length + travelled,
		ClimbLength: last.ClimbLength + travelled,
		Climbing:    res.Climbing,
	}
	if !res.Climbing {
		node.FloatLength = last.FloatLength + travelled
	}
	return node, true
}

func checkInput(g *graph.Graph, p profile.Profile) error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", ErrInvalidInput)
	}
	if len(g.Roots) == 0 {
		return fmt.Errorf("%w: graph has no roots", ErrInvalidInput)
	}
	for i, r := range g.Roots {
		if r == nil || r.Len() == 0 {
			return fmt.Errorf("%w: root %d has no nodes", ErrInvalidInput, i)
		}
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

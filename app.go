package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chazu/tendril/pkg/driver"
	"github.com/chazu/tendril/pkg/engine"
	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/growth"
	"github.com/chazu/tendril/pkg/kernel"
	"github.com/chazu/tendril/pkg/kernel/manifold"
	"github.com/chazu/tendril/pkg/kernel/sdfx"
	"github.com/chazu/tendril/pkg/profile"
	"github.com/chazu/tendril/pkg/tessellate"
)

// DefaultMeshCells is the marching cubes resolution for branch meshes.
const DefaultMeshCells = 96

// colorPalette is a default palette used to assign distinct colors to meshes.
var colorPalette = []string{
	"#4A7A2C", "#6B8E23", "#2E8B57", "#556B2F",
	"#8FBC8F", "#3CB371", "#228B22", "#9ACD32",
}

// App runs scene scripts through growth and collects the result.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	log    *slog.Logger
}

// RunOptions controls one growth run.
type RunOptions struct {
	Ticks int   // maximum number of ticks
	Seed  int64 // random seed
	Mesh  bool  // tessellate the finished graphs
	Merge bool  // merge visible graphs before output
	// Kernel names the branch mesh kernel: "sdfx" (default) or "manifold".
	Kernel string
	// Profile overrides the script's profile when set.
	Profile *profile.Profile
	// StopAfter force-stops every vine after this many ticks. Zero disables.
	StopAfter int
	// Interval grows in real time, one tick per interval. Zero ticks as
	// fast as possible.
	Interval time.Duration
}

// DefaultRunOptions returns the options used by the command line defaults.
func DefaultRunOptions() RunOptions {
	return RunOptions{Ticks: 200, Seed: 1}
}

// MeshData is the JSON-serializable mesh format.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Graph    int       `json:"graph"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// GraphData summarises one grown graph.
type GraphData struct {
	Seed      [3]float64   `json:"seed"`
	Roots     int          `json:"roots"`
	LiveRoots int          `json:"liveRoots"`
	Nodes     int          `json:"nodes"`
	Growing   bool         `json:"growing"`
	Segments  [][3]float64 `json:"segments"`
}

// RunResult is the full result of a run.
type RunResult struct {
	Ticks    uint64          `json:"ticks"`
	Graphs   []GraphData     `json:"graphs"`
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates a new App with a script engine and the sdfx kernel.
func NewApp(log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		engine: engine.NewEngine(),
		kernel: sdfx.NewWithCells(DefaultMeshCells),
		log:    log,
	}
}

// Run evaluates source, grows a vine from every seed it defines and returns
// the grown graphs.
func (a *App) Run(source string, opts RunOptions) RunResult {
	return a.RunContext(context.Background(), source, opts)
}

// RunContext is Run with a context. Cancelling ctx ends growth early; the
// vines grown so far are still returned.
func (a *App) RunContext(ctx context.Context, source string, opts RunOptions) RunResult {
	result := RunResult{
		Graphs:   []GraphData{},
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the Lisp source into a scene setup.
	setup, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.log.Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	for _, w := range setup.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Line:    w.Line,
			Col:     w.Col,
			Message: w.Message,
		})
	}

	p := setup.Profile
	if opts.Profile != nil {
		p = *opts.Profile
	}
	k, err := a.meshKernel(opts.Kernel)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Seed one graph per script seed and grow them together.
	meshes := make(map[*graph.Graph][]*kernel.Mesh)
	eng := growth.NewEngine(setup.Scene,
		growth.WithRand(growth.NewRand(opts.Seed)),
		growth.WithLogger(a.log),
	)
	var (
		d      *driver.Driver
		seeded []*graph.Graph
	)
	growCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Scripted strokes and branches run before the tick they name; the
	// tick callback runs them once n ticks have completed.
	actions := func(n uint64) {
		for _, w := range applyActions(eng, seeded, setup, p, n) {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: w})
		}
		if opts.StopAfter > 0 && n == uint64(opts.StopAfter) {
			a.log.Info("stopping growth", "ticks", n)
			d.StopAll()
		}
		if n >= uint64(opts.Ticks) {
			cancel()
		}
	}
	d = driver.New(eng,
		driver.WithLogger(a.log),
		driver.WithTickFunc(actions),
		driver.WithMeshFunc(func(g *graph.Graph, p profile.Profile) error {
			m, err := tessellate.Tessellate(g, p, k)
			if err != nil {
				return err
			}
			meshes[g] = m
			return nil
		}),
	)
	for _, s := range setup.Seeds {
		g := graph.New(s.Position, s.Direction, s.Adhesion)
		if err := d.Add(g, p); err != nil {
			result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
			return result
		}
		seeded = append(seeded, g)
	}

	for _, w := range applyActions(eng, seeded, setup, p, 0) {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w})
	}
	if err := grow(growCtx, d, opts); err != nil {
		a.log.Error("tick failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	result.Ticks = d.Ticks()
	if ctx.Err() != nil {
		a.log.Warn("growth interrupted", "ticks", result.Ticks)
	}
	for _, w := range skippedActions(setup, result.Ticks) {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w})
	}
	if opts.Merge {
		d.Merge()
	}

	// Step 3: Collect graph data and meshes.
	for gi, g := range d.Graphs() {
		for _, v := range graph.Validate(g) {
			result.Warnings = append(result.Warnings, EvalErrorData{
				Message: fmt.Sprintf("graph %d: %s", gi, v.Error()),
			})
		}
		result.Graphs = append(result.Graphs, graphData(g))

		if !opts.Mesh {
			continue
		}
		m, ok := meshes[g]
		if !ok || opts.Merge {
			m, err = tessellate.Tessellate(g, p, k)
			if err != nil {
				a.log.Error("tessellate failed", "graph", gi, "err", err)
				result.Errors = append(result.Errors, EvalErrorData{
					Message: "tessellation failed: " + err.Error(),
				})
				return result
			}
		}
		for _, mesh := range m {
			result.Meshes = append(result.Meshes, MeshData{
				Vertices: mesh.Vertices,
				Normals:  mesh.Normals,
				Indices:  mesh.Indices,
				PartName: mesh.PartName,
				Graph:    gi,
				Color:    colorPalette[len(result.Meshes)%len(colorPalette)],
			})
		}
	}

	a.log.Info("run finished",
		"ticks", result.Ticks,
		"graphs", len(result.Graphs),
		"meshes", len(result.Meshes),
	)
	return result
}

// grow ticks d until opts.Ticks ticks have run, nothing grows or ctx ends.
// With an interval it hands over to the driver's real-time loop.
func grow(ctx context.Context, d *driver.Driver, opts RunOptions) error {
	if opts.Interval <= 0 {
		for d.Ticks() < uint64(opts.Ticks) && d.Growing() > 0 && ctx.Err() == nil {
			if err := d.Tick(); err != nil {
				return err
			}
		}
		return nil
	}
	if opts.Ticks <= 0 {
		return nil
	}
	err := d.Run(ctx, opts.Interval)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// applyActions runs the scripted strokes and forced branches due before
// tick n and returns a warning for each one that could not be applied.
func applyActions(eng *growth.Engine, seeded []*graph.Graph, setup *engine.Setup, p profile.Profile, n uint64) []string {
	var warnings []string
	for _, s := range setup.Paints {
		if uint64(s.Tick) != n {
			continue
		}
		if err := growth.ForceGrowth(seeded[s.Seed], s.Position, s.Normal); err != nil {
			warnings = append(warnings, fmt.Sprintf("paint on seed %d at tick %d: %v", s.Seed, n, err))
		}
	}
	for _, b := range setup.Branches {
		if uint64(b.Tick) != n {
			continue
		}
		if !eng.ForceRandomBranch(seeded[b.Seed], p) {
			warnings = append(warnings, fmt.Sprintf("force-branch on seed %d at tick %d: no branch spawned", b.Seed, n))
		}
	}
	return warnings
}

// skippedActions reports scripted actions scheduled past the last tick.
func skippedActions(setup *engine.Setup, ticks uint64) []string {
	var warnings []string
	for _, s := range setup.Paints {
		if uint64(s.Tick) > ticks {
			warnings = append(warnings, fmt.Sprintf("paint on seed %d at tick %d skipped: growth ended at tick %d", s.Seed, s.Tick, ticks))
		}
	}
	for _, b := range setup.Branches {
		if uint64(b.Tick) > ticks {
			warnings = append(warnings, fmt.Sprintf("force-branch on seed %d at tick %d skipped: growth ended at tick %d", b.Seed, b.Tick, ticks))
		}
	}
	return warnings
}

// meshKernel returns the kernel named by name.
func (a *App) meshKernel(name string) (kernel.Kernel, error) {
	switch name {
	case "", "sdfx":
		return a.kernel, nil
	case "manifold":
		k, err := manifold.New()
		if err != nil {
			return nil, fmt.Errorf("mesh kernel: %w", err)
		}
		return k, nil
	}
	return nil, fmt.Errorf("mesh kernel: unknown kernel %q", name)
}

func graphData(g *graph.Graph) GraphData {
	segs := g.LineSegments()
	out := GraphData{
		Seed:      [3]float64{g.Seed.X, g.Seed.Y, g.Seed.Z},
		Roots:     len(g.Roots),
		LiveRoots: g.LiveCount(),
		Nodes:     g.NodeCount(),
		Growing:   g.Growing,
		Segments:  make([][3]float64, len(segs)),
	}
	for i, v := range segs {
		out.Segments[i] = [3]float64{v.X, v.Y, v.Z}
	}
	return out
}

// Package driver ticks a set of vine graphs over time. It owns the
// once-per-tick sampler refresh and the optional mesh callback, and
// serialises access so a host goroutine can drive it.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chazu/tendril/pkg/graph"
	"github.com/chazu/tendril/pkg/growth"
	"github.com/chazu/tendril/pkg/profile"
)

// DefaultInterval is the tick period used by Run when none is given.
const DefaultInterval = 100 * time.Millisecond

// MeshFunc regenerates geometry for a graph after it grows.
type MeshFunc func(*graph.Graph, profile.Profile) error

// TickFunc runs after every tick with the number of completed ticks. It is
// called without the driver lock held, so it may call back into the driver.
type TickFunc func(ticks uint64)

// entry is one graph and the profile it grows with.
type entry struct {
	g *graph.Graph
	p profile.Profile
}

// Driver steps graphs with a shared growth engine.
type Driver struct {
	mu      sync.Mutex
	eng     *growth.Engine
	entries []entry
	mesh    MeshFunc
	onTick  TickFunc
	log     *slog.Logger
	ticks   uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithMeshFunc sets the callback run after every step of a graph that asks
// for meshing during growth.
func WithMeshFunc(fn MeshFunc) Option {
	return func(d *Driver) { d.mesh = fn }
}

// WithTickFunc sets a callback run after every completed tick.
func WithTickFunc(fn TickFunc) Option {
	return func(d *Driver) { d.onTick = fn }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// New returns a driver stepping graphs with eng.
func New(eng *growth.Engine, opts ...Option) *Driver {
	d := &Driver{eng: eng}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// Add registers g to grow with p. A profile that meshes during growth turns
// the graph's flag on.
func (d *Driver) Add(g *graph.Graph, p profile.Profile) error {
	if g == nil {
		return errors.New("nil graph")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.MeshDuringGrowth {
		g.MeshDuringGrowth = true
	}
	d.entries = append(d.entries, entry{g: g, p: p})
	return nil
}

// Graphs returns the registered graphs in insertion order.
func (d *Driver) Graphs() []*graph.Graph {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*graph.Graph, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.g
	}
	return out
}

// Growing returns how many registered graphs are still growing.
func (d *Driver) Growing() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.growing()
}

func (d *Driver) growing() int {
	n := 0
	for _, e := range d.entries {
		if e.g.Growing {
			n++
		}
	}
	return n
}

// Ticks returns the number of completed ticks.
func (d *Driver) Ticks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// Tick refreshes the adhesion sampler once and steps every growing graph.
// Graphs flagged for meshing during growth are handed to the mesh callback
// after their step. The first error stops the tick. The tick callback runs
// once the tick has completed.
func (d *Driver) Tick() error {
	n, err := d.tick()
	if err != nil {
		return err
	}
	if d.onTick != nil {
		d.onTick(n)
	}
	return nil
}

func (d *Driver) tick() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.eng.Sampler().Refresh(d.eng.Rand())

	var total growth.Report
	for i, e := range d.entries {
		if !e.g.Growing {
			continue
		}
		rep, err := d.eng.Step(e.g, e.p)
		if err != nil {
			return d.ticks, fmt.Errorf("tick %d: graph %d: %w", d.ticks, i, err)
		}
		total.Grown += rep.Grown
		total.Died += rep.Died
		total.Spawned += rep.Spawned

		if e.g.MeshDuringGrowth && d.mesh != nil {
			if err := d.mesh(e.g, e.p); err != nil {
				return d.ticks, fmt.Errorf("tick %d: mesh graph %d: %w", d.ticks, i, err)
			}
		}
	}
	d.ticks++
	d.log.Debug("tick",
		"tick", d.ticks,
		"grown", total.Grown,
		"died", total.Died,
		"spawned", total.Spawned,
		"growing", d.growing(),
	)
	return d.ticks, nil
}

// Run ticks every interval until ctx ends, a tick fails, or no graph is
// growing. A non-positive interval means DefaultInterval. Running out of
// growth returns nil; a cancelled context returns ctx.Err().
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if d.Growing() == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// A tick callback may have cancelled ctx while the ticker fired.
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.Tick(); err != nil {
				return err
			}
			if d.Growing() == 0 {
				d.log.Info("growth finished", "ticks", d.Ticks())
				return nil
			}
		}
	}
}

// StopAll halts every graph. Roots keep their alive flags.
func (d *Driver) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		e.g.Stop()
	}
}

// Merge folds the visible graphs sharing a profile into the first of them
// and drops the merged sources. It returns the number of graphs removed.
func (d *Driver) Merge() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	var order []profile.Profile
	groups := make(map[profile.Profile][]*graph.Graph)
	for _, e := range d.entries {
		if _, ok := groups[e.p]; !ok {
			order = append(order, e.p)
		}
		groups[e.p] = append(groups[e.p], e.g)
	}

	kept := make(map[*graph.Graph]bool, len(d.entries))
	for _, p := range order {
		_, remaining := graph.MergeVisible(groups[p])
		for _, g := range remaining {
			kept[g] = true
		}
	}

	before := len(d.entries)
	entries := d.entries[:0]
	for _, e := range d.entries {
		if kept[e.g] {
			entries = append(entries, e)
		}
	}
	d.entries = entries
	removed := before - len(d.entries)
	if removed > 0 {
		d.log.Info("merged graphs", "removed", removed, "graphs", len(d.entries))
	}
	return removed
}

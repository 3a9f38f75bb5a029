package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Heightfield maps a horizontal position to an elevation.
type Heightfield interface {
	Height(x, z float64) float64
}

// Flat is a level plane at height Y.
type Flat struct {
	Y float64
}

func (f Flat) Height(x, z float64) float64 { return f.Y }

// Waves is a rolling sinusoidal landscape.
type Waves struct {
	Base      float64
	Amplitude float64
	Frequency float64
}

func (w Waves) Height(x, z float64) float64 {
	return w.Base + w.Amplitude*math.Sin(x*w.Frequency)*math.Cos(z*w.Frequency)
}

// Grid is a regular heightmap sampled bilinearly. Heights[row][col] sits at
// (Origin.X + col*Cell, Origin.Z + row*Cell); positions outside the grid are
// clamped to its border.
type Grid struct {
	OriginX float64
	OriginZ float64
	Cell    float64
	Heights [][]float64
}

// NewGrid checks that heights is a non-empty rectangle.
func NewGrid(originX, originZ, cell float64, heights [][]float64) (*Grid, error) {
	if cell <= 0 {
		return nil, fmt.Errorf("grid cell size must be positive, got %g", cell)
	}
	if len(heights) == 0 || len(heights[0]) == 0 {
		return nil, errors.New("grid has no samples")
	}
	for i, row := range heights {
		if len(row) != len(heights[0]) {
			return nil, fmt.Errorf("grid row %d has %d samples, want %d", i, len(row), len(heights[0]))
		}
	}
	return &Grid{OriginX: originX, OriginZ: originZ, Cell: cell, Heights: heights}, nil
}

func (g *Grid) Height(x, z float64) float64 {
	rows := len(g.Heights)
	cols := len(g.Heights[0])
	fx := clampIndex((x-g.OriginX)/g.Cell, cols)
	fz := clampIndex((z-g.OriginZ)/g.Cell, rows)
	c0, r0 := int(fx), int(fz)
	c1, r1 := min(c0+1, cols-1), min(r0+1, rows-1)
	tx, tz := fx-float64(c0), fz-float64(r0)
	top := g.Heights[r0][c0]*(1-tx) + g.Heights[r0][c1]*tx
	bottom := g.Heights[r1][c0]*(1-tx) + g.Heights[r1][c1]*tx
	return top*(1-tz) + bottom*tz
}

func clampIndex(f float64, n int) float64 {
	return math.Max(0, math.Min(f, float64(n-1)))
}

// terrainBound is the half extent reported as the terrain's bounding box.
const terrainBound = 1e6

// terrainLipschitz shortens sphere-tracing steps because vertical height is
// not a true distance on slopes.
const terrainLipschitz = 0.5

// terrainSDF exposes a heightfield to sdfx as an SDF3: positive above the
// surface, negative below.
type terrainSDF struct {
	field Heightfield
}

var _ sdf.SDF3 = terrainSDF{}

func (t terrainSDF) Evaluate(p v3.Vec) float64 {
	return p.Y - t.field.Height(p.X, p.Z)
}

func (t terrainSDF) BoundingBox() sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: -terrainBound, Y: -terrainBound, Z: -terrainBound},
		Max: v3.Vec{X: terrainBound, Y: terrainBound, Z: terrainBound},
	}
}

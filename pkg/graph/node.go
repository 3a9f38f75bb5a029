package graph

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Node is one sample point along a root.
type Node struct {
	// Position relative to the graph seed.
	Position v3.Vec `json:"position"`
	// Direction is the unit heading of the branch at this node.
	Direction v3.Vec `json:"direction"`
	// Adhesion is the direction that last pulled this node toward a
	// surface; zero if none.
	Adhesion v3.Vec `json:"adhesion"`
	// Length is the arc length from the start of the root.
	Length float64 `json:"length"`
	// ClimbLength is the arc length since the branch last began climbing.
	// Forced branches restart it at zero.
	ClimbLength float64 `json:"climb_length"`
	// FloatLength is the arc length accumulated since the last segment
	// that touched a surface.
	FloatLength float64 `json:"float_length"`
	// Climbing is set when the incoming segment touched a surface.
	Climbing bool `json:"climbing"`
}

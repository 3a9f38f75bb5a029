// Package graph defines the growth graph: a seed position and an ordered,
// append-only set of roots (branches), each an append-only sequence of
// nodes. Roots and nodes live in flat slices and refer to each other by
// index.
package graph

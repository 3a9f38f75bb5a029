//go:build !manifold

// Package manifold is a polygonal kernel.Kernel backed by the Manifold C
// library. Without the "manifold" build tag this stub is compiled instead
// and New reports that the kernel is unavailable.
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/chazu/tendril/pkg/kernel"
)

// ErrUnavailable is returned by New when built without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrUnavailable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}

// NewWithSegments returns ErrUnavailable.
func NewWithSegments(n int) (kernel.Kernel, error) {
	return nil, ErrUnavailable
}

package graph

import (
	"fmt"

	"github.com/chazu/tendril/pkg/geom"
)

// ValidationSeverity indicates whether a validation finding means the graph
// cannot be stepped or is merely suspicious.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // graph is malformed
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding. Root and Node are
// -1 for findings about the graph or the whole root.
type ValidationError struct {
	Root     int
	Node     int
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	switch {
	case e.Root < 0:
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	case e.Node < 0:
		return fmt.Sprintf("[%s] root %d: %s", e.Severity, e.Root, e.Message)
	default:
		return fmt.Sprintf("[%s] root %d node %d: %s", e.Severity, e.Root, e.Node, e.Message)
	}
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the structural checks on g and returns every finding. An
// empty slice means the graph is valid. Validate never mutates g.
func Validate(g *Graph) []ValidationError {
	if g == nil {
		return []ValidationError{{Root: -1, Node: -1, Message: "graph is nil", Severity: SeverityError}}
	}
	var errs []ValidationError
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateLengths(g)...)
	errs = append(errs, validateParents(g)...)
	errs = append(errs, validateGrowing(g)...)
	return errs
}

// validateRoots checks that the graph has roots and every root has nodes
// with finite positions.
func validateRoots(g *Graph) []ValidationError {
	var errs []ValidationError
	if len(g.Roots) == 0 {
		errs = append(errs, ValidationError{
			Root: -1, Node: -1,
			Message:  "graph has no roots",
			Severity: SeverityError,
		})
	}
	for ri, r := range g.Roots {
		if r == nil {
			errs = append(errs, ValidationError{
				Root: ri, Node: -1,
				Message:  "root is nil",
				Severity: SeverityError,
			})
			continue
		}
		if len(r.Nodes) == 0 {
			errs = append(errs, ValidationError{
				Root: ri, Node: -1,
				Message:  "root has no nodes",
				Severity: SeverityError,
			})
		}
		for ni, n := range r.Nodes {
			if !geom.IsFinite(n.Position) {
				errs = append(errs, ValidationError{
					Root: ri, Node: ni,
					Message:  "position is not finite",
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateLengths checks that arc lengths never decrease along a root and
// that floating length stays within climbing length.
func validateLengths(g *Graph) []ValidationError {
	var errs []ValidationError
	for ri, r := range g.Roots {
		if r == nil {
			continue
		}
		for ni, n := range r.Nodes {
			if n.FloatLength > n.ClimbLength {
				errs = append(errs, ValidationError{
					Root: ri, Node: ni,
					Message:  fmt.Sprintf("float length %g exceeds climb length %g", n.FloatLength, n.ClimbLength),
					Severity: SeverityError,
				})
			}
			if ni == 0 {
				continue
			}
			prev := r.Nodes[ni-1]
			if n.Length < prev.Length {
				errs = append(errs, ValidationError{
					Root: ri, Node: ni,
					Message:  fmt.Sprintf("length decreases from %g to %g", prev.Length, n.Length),
					Severity: SeverityError,
				})
			}
			if n.ClimbLength < prev.ClimbLength {
				errs = append(errs, ValidationError{
					Root: ri, Node: ni,
					Message:  fmt.Sprintf("climb length decreases from %g to %g", prev.ClimbLength, n.ClimbLength),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateParents checks that fork links point at existing roots and nodes
// earlier in the arena, and that child counts agree with them.
func validateParents(g *Graph) []ValidationError {
	var errs []ValidationError
	children := make([]int, len(g.Roots))
	for ri, r := range g.Roots {
		if r == nil || r.Parent == NoParent {
			continue
		}
		if r.Parent < 0 || r.Parent >= ri || g.Roots[r.Parent] == nil {
			errs = append(errs, ValidationError{
				Root: ri, Node: -1,
				Message:  fmt.Sprintf("parent root %d out of range", r.Parent),
				Severity: SeverityError,
			})
			continue
		}
		children[r.Parent]++
		if r.ParentNode < 0 || r.ParentNode >= len(g.Roots[r.Parent].Nodes) {
			errs = append(errs, ValidationError{
				Root: ri, Node: -1,
				Message:  fmt.Sprintf("parent node %d out of range for root %d", r.ParentNode, r.Parent),
				Severity: SeverityError,
			})
		}
		if r.Parents <= g.Roots[r.Parent].Parents {
			errs = append(errs, ValidationError{
				Root: ri, Node: -1,
				Message:  "parent depth does not exceed its parent's",
				Severity: SeverityWarning,
			})
		}
	}
	for ri, r := range g.Roots {
		if r != nil && r.ChildCount < children[ri] {
			errs = append(errs, ValidationError{
				Root: ri, Node: -1,
				Message:  fmt.Sprintf("child count %d below %d recorded children", r.ChildCount, children[ri]),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateGrowing flags a graph that claims to grow with no live roots.
func validateGrowing(g *Graph) []ValidationError {
	if g.Growing && len(g.Roots) > 0 && g.LiveCount() == 0 {
		return []ValidationError{{
			Root: -1, Node: -1,
			Message:  "graph is growing but every root is dead",
			Severity: SeverityWarning,
		}}
	}
	return nil
}

package graph

// MergeVisible folds every visible graph into the first visible one.
//
// Node positions of each source are re-expressed in the target's frame by
// adding the source seed and subtracting the target seed, so world positions
// are unchanged. Source roots are appended to the target in order with their
// parent links rebased. The target's Growing flag is left as it was, so a
// stopped target stays stopped. Sources are dropped from the returned slice;
// non-visible graphs are returned untouched. merged is nil when no graph is
// visible.
func MergeVisible(graphs []*Graph) (merged *Graph, remaining []*Graph) {
	for _, g := range graphs {
		if g == nil {
			continue
		}
		if !g.Visible {
			remaining = append(remaining, g)
			continue
		}
		if merged == nil {
			merged = g
			remaining = append(remaining, g)
			continue
		}
		mergeInto(merged, g)
	}
	return merged, remaining
}

func mergeInto(dst, src *Graph) {
	offset := src.Seed.Sub(dst.Seed)
	base := len(dst.Roots)
	for _, r := range src.Roots {
		for i := range r.Nodes {
			r.Nodes[i].Position = r.Nodes[i].Position.Add(offset)
		}
		if r.Parent != NoParent {
			r.Parent += base
		}
		r.Invalidate()
		dst.Roots = append(dst.Roots, r)
	}
	src.Roots = nil
}

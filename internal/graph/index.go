package graph

import (
	"slices"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/florg/internal/treepath"
)

// Level is one breadcrumb step: the component at that depth and the title of
// the node it leads to ("" when nothing exists there).
type Level struct {
	Component uint32
	Title     string
}

// Index is the in-memory node collection, kept sorted by path.
// Every node below the root has an entry at its parent; missing ancestors
// are filled with synthesized placeholders by Normalize.
//
// Index is not safe for concurrent use; the owning store serializes access.
type Index struct {
	nodes []Node
}

// NewIndex builds a normalized index from unsorted nodes.
func NewIndex(nodes []Node) *Index {
	ix := &Index{nodes: make([]Node, 0, len(nodes))}
	for _, n := range nodes {
		ix.nodes = append(ix.nodes, n.Clone())
	}
	ix.Normalize()
	return ix
}

func (ix *Index) Len() int { return len(ix.nodes) }

// Nodes returns a copy of all nodes in path order.
func (ix *Index) Nodes() []Node {
	out := make([]Node, len(ix.nodes))
	for i, n := range ix.nodes {
		out[i] = n.Clone()
	}
	return out
}

func (ix *Index) search(p treepath.Path) (int, bool) {
	return slices.BinarySearchFunc(ix.nodes, p, func(n Node, target treepath.Path) int {
		return treepath.Compare(n.Path, target)
	})
}

// Get returns the node at p.
func (ix *Index) Get(p treepath.Path) (Node, bool) {
	i, ok := ix.search(p)
	if !ok {
		return Node{}, false
	}
	return ix.nodes[i].Clone(), true
}

// Has reports whether a node exists at p.
func (ix *Index) Has(p treepath.Path) bool {
	_, ok := ix.search(p)
	return ok
}

// Put inserts n or replaces the node at the same path.
func (ix *Index) Put(n Node) {
	n = n.Clone()
	i, ok := ix.search(n.Path)
	if ok {
		ix.nodes[i] = n
		return
	}
	ix.nodes = slices.Insert(ix.nodes, i, n)
}

// Remove drops the node at p.
func (ix *Index) Remove(p treepath.Path) bool {
	i, ok := ix.search(p)
	if !ok {
		return false
	}
	ix.nodes = slices.Delete(ix.nodes, i, i+1)
	return true
}

// RemovePrefix drops p and every descendant, returning how many went.
func (ix *Index) RemovePrefix(p treepath.Path) int {
	start, _ := ix.search(p)
	end := start
	for end < len(ix.nodes) && ix.nodes[end].Path.StartsWith(p) {
		end++
	}
	ix.nodes = slices.Delete(ix.nodes, start, end)
	return end - start
}

// Rebase moves every node under from (inclusive) to the same position under to.
func (ix *Index) Rebase(from, to treepath.Path) int {
	moved := 0
	for i := range ix.nodes {
		if ix.nodes[i].Path.StartsWith(from) {
			ix.nodes[i].Path = ix.nodes[i].Path.Rebase(from, to)
			moved++
		}
	}
	if moved > 0 {
		ix.sort()
	}
	return moved
}

// HasDescendants reports whether any node lies strictly below p.
func (ix *Index) HasDescendants(p treepath.Path) bool {
	i, ok := ix.search(p)
	if ok {
		i++
	}
	return i < len(ix.nodes) && ix.nodes[i].Path.StartsWith(p) && len(ix.nodes[i].Path) > len(p)
}

// Subtree returns p and its descendants in path order.
func (ix *Index) Subtree(p treepath.Path) []Node {
	start, _ := ix.search(p)
	var out []Node
	for i := start; i < len(ix.nodes) && ix.nodes[i].Path.StartsWith(p); i++ {
		out = append(out, ix.nodes[i].Clone())
	}
	return out
}

// Children returns the direct children of p ordered by last component.
// Nodes parked in the sentinel slot are not children.
func (ix *Index) Children(p treepath.Path) []Node {
	var out []Node
	want := len(p) + 1
	start, _ := ix.search(p)
	for i := start; i < len(ix.nodes) && ix.nodes[i].Path.StartsWith(p); i++ {
		n := ix.nodes[i]
		if len(n.Path) == want && n.Path.Last() != treepath.Sentinel {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Ancestors pairs each component of p with the title of the node at that
// prefix, root to leaf.
func (ix *Index) Ancestors(p treepath.Path) []Level {
	levels := make([]Level, len(p))
	for depth := len(p); depth > 0; depth-- {
		prefix := p[:depth]
		title := ""
		if n, ok := ix.Get(prefix); ok {
			title = n.Header.Title
		}
		levels[depth-1] = Level{Component: p[depth-1], Title: title}
	}
	return levels
}

// UsedSlots returns the set of last components taken by children of p,
// including the sentinel slot when occupied.
func (ix *Index) UsedSlots(p treepath.Path) *roaring.Bitmap {
	used := roaring.New()
	want := len(p) + 1
	start, _ := ix.search(p)
	for i := start; i < len(ix.nodes) && ix.nodes[i].Path.StartsWith(p); i++ {
		if len(ix.nodes[i].Path) == want {
			used.Add(ix.nodes[i].Path.Last())
		}
	}
	return used
}

// NextEmptyChild returns p extended by the smallest free component.
// ok is false when every component below the sentinel is taken.
func (ix *Index) NextEmptyChild(p treepath.Path) (treepath.Path, bool) {
	return NextFree(ix.UsedSlots(p), p)
}

// NextFree picks the smallest component of parent not present in used.
func NextFree(used *roaring.Bitmap, parent treepath.Path) (treepath.Path, bool) {
	// The first gap is at most the number of used slots.
	limit := used.GetCardinality()
	for k := uint64(0); k <= limit && k < uint64(treepath.Sentinel); k++ {
		if !used.Contains(uint32(k)) {
			return parent.Append(uint32(k)), true
		}
	}
	return nil, false
}

// Normalize restores the index invariants: path order, no synthesized
// entries without descendants, and a complete ancestor chain for every node.
func (ix *Index) Normalize() {
	ix.sort()
	ix.prune()
	ix.close()
}

// StalePaths returns nodes lying under a sentinel slot.
func (ix *Index) StalePaths() []treepath.Path {
	var out []treepath.Path
	for _, n := range ix.nodes {
		if n.Path.HasSentinel() && !n.Synthesized {
			out = append(out, n.Path.Clone())
		}
	}
	return out
}

func (ix *Index) sort() {
	slices.SortFunc(ix.nodes, func(a, b Node) int {
		return treepath.Compare(a.Path, b.Path)
	})
}

// prune walks backwards so that a synthesized node is kept only if the next
// kept node, in path order, is one of its descendants.
func (ix *Index) prune() {
	kept := make([]Node, 0, len(ix.nodes))
	var next treepath.Path
	haveNext := false
	for i := len(ix.nodes) - 1; i >= 0; i-- {
		n := ix.nodes[i]
		if n.Synthesized {
			hasChild := haveNext && next.StartsWith(n.Path) && len(next) > len(n.Path)
			if !hasChild {
				continue
			}
		}
		kept = append(kept, n)
		next, haveNext = n.Path, true
	}
	slices.Reverse(kept)
	ix.nodes = kept
}

func (ix *Index) close() {
	present := make(map[string]struct{}, len(ix.nodes))
	for _, n := range ix.nodes {
		present[n.Path.Human()] = struct{}{}
	}
	var added []Node
	for _, n := range ix.nodes {
		p := n.Path
		for {
			parent, ok := p.Parent()
			if !ok {
				break
			}
			key := parent.Human()
			if _, exists := present[key]; exists {
				break
			}
			present[key] = struct{}{}
			added = append(added, Placeholder(parent))
			p = parent
		}
	}
	if len(added) > 0 {
		ix.nodes = append(ix.nodes, added...)
		ix.sort()
	}
}

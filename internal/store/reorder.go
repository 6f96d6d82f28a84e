package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/treepath"
)

// SwapWithPrevious exchanges p with its preceding sibling.
func (s *Storage) SwapWithPrevious(ctx context.Context, p treepath.Path) error {
	return s.swap(ctx, p, -1)
}

// SwapWithNext exchanges p with its following sibling.
func (s *Storage) SwapWithNext(ctx context.Context, p treepath.Path) error {
	return s.swap(ctx, p, +1)
}

// swap rotates through the parent's sentinel slot so that no two nodes ever
// share a path: sibling -> slot, p -> sibling, slot -> p.
func (s *Storage) swap(ctx context.Context, p treepath.Path, step int) error {
	if p.IsRoot() {
		return fmt.Errorf("%w: the root has no siblings", ErrConflict)
	}
	if err := checkOrdinary(p); err != nil {
		return err
	}
	parent, _ := p.Parent()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.index.Has(p) {
		return fmt.Errorf("%w: %q", ErrNotFound, p.Human())
	}
	siblings := s.index.Children(parent)
	i := slices.IndexFunc(siblings, func(n graph.Node) bool { return n.Path.Equal(p) })
	j := i + step
	if i < 0 || j < 0 || j >= len(siblings) {
		return fmt.Errorf("%w: %q has no sibling in that direction", ErrConflict, p.Human())
	}
	other := siblings[j].Path

	slot := parent.Append(treepath.Sentinel)
	if err := s.checkSlotFree(slot); err != nil {
		return err
	}

	steps := [][2]treepath.Path{{other, slot}, {p, other}, {slot, p}}
	for _, st := range steps {
		if err := s.rename(st[0], st[1]); err != nil {
			s.resync(err)
			return err
		}
	}
	for _, st := range steps {
		s.index.Rebase(st[0], st[1])
	}
	s.index.Normalize()

	return s.commit(ctx, fmt.Sprintf("Swapped %s with %s", display(p), display(other)))
}

func (s *Storage) checkSlotFree(slot treepath.Path) error {
	if s.index.Has(slot) || s.exists(slot.Dir()) {
		return fmt.Errorf("%w: parking slot %q is occupied; run recover", ErrConflict, slot.Human())
	}
	return nil
}

// SortChildren renumbers the children of parent 0..N-1 in natural title
// order. It returns how many children moved.
func (s *Storage) SortChildren(ctx context.Context, parent treepath.Path) (int, error) {
	if err := checkOrdinary(parent); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	children := s.index.Children(parent)
	slices.SortStableFunc(children, func(a, b graph.Node) int {
		if c := NaturalCompare(a.Header.Title, b.Header.Title); c != 0 {
			return c
		}
		return strings.Compare(a.Raw, b.Raw)
	})
	return s.remapLocked(ctx, parent, children, fmt.Sprintf("Sorted children of %s", display(parent)))
}

// CompactChildren renumbers the children of parent 0..N-1 keeping their
// order. It returns how many children moved.
func (s *Storage) CompactChildren(ctx context.Context, parent treepath.Path) (int, error) {
	if err := checkOrdinary(parent); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	children := s.index.Children(parent)
	return s.remapLocked(ctx, parent, children, fmt.Sprintf("Compacted children of %s", display(parent)))
}

type move struct{ from, to treepath.Path }

// remapLocked moves ordered[i] to parent/i. Every source is parked under
// parent/Sentinel/<old component> before any target is filled, which keeps
// permutations with cycles collision free.
func (s *Storage) remapLocked(ctx context.Context, parent treepath.Path, ordered []graph.Node, message string) (int, error) {
	var moves []move
	for i, n := range ordered {
		to := parent.Append(uint32(i))
		if !n.Path.Equal(to) {
			moves = append(moves, move{from: n.Path, to: to})
		}
	}
	if len(moves) == 0 {
		return 0, nil
	}

	slot := parent.Append(treepath.Sentinel)
	if err := s.checkSlotFree(slot); err != nil {
		return 0, err
	}
	staged := func(m move) treepath.Path { return slot.Append(m.from.Last()) }

	for _, m := range moves {
		if err := s.rename(m.from, staged(m)); err != nil {
			s.resync(err)
			return 0, err
		}
	}
	for _, m := range moves {
		if err := s.rename(staged(m), m.to); err != nil {
			s.resync(err)
			return 0, err
		}
	}
	if err := s.fs.Remove(slot.Dir()); err != nil {
		s.resync(err)
		return 0, ioErr("remove", slot.Dir(), err)
	}

	for _, m := range moves {
		s.index.Rebase(m.from, staged(m))
	}
	for _, m := range moves {
		s.index.Rebase(staged(m), m.to)
	}
	s.index.Normalize()

	return len(moves), s.commit(ctx, message)
}

// RecoverSentinels returns nodes stranded in parking slots by an
// interrupted reorder to the first free child slots of their parents. It
// returns how many nodes were moved.
func (s *Storage) RecoverSentinels(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for {
		slot, ok := s.firstSlot()
		if !ok {
			break
		}
		parent, _ := slot.Parent()
		n, _ := s.index.Get(slot)

		var sources []treepath.Path
		if n.Synthesized {
			// a remap staging area: its children are the parked nodes
			for _, c := range s.index.Children(slot) {
				sources = append(sources, c.Path)
			}
		} else {
			// a swap parked this node itself
			sources = append(sources, slot)
		}
		if len(sources) == 0 {
			return moved, fmt.Errorf("%w: cannot recover %q", ErrConflict, slot.Human())
		}

		for _, src := range sources {
			dst, ok := s.index.NextEmptyChild(parent)
			if !ok {
				return moved, fmt.Errorf("%w below %q", ErrExhausted, parent.Human())
			}
			if err := s.rename(src, dst); err != nil {
				s.resync(err)
				return moved, err
			}
			s.index.Rebase(src, dst)
			s.index.Normalize()
			s.logger.Info("recovered parked node", "from", src.Human(), "to", dst.Human())
			moved++
		}
		if !s.index.Has(slot) {
			_ = s.fs.Remove(slot.Dir())
		}
	}

	if moved == 0 {
		return 0, nil
	}
	return moved, s.commit(ctx, "Recovered parked nodes")
}

// firstSlot finds the shallowest index entry sitting in a sentinel slot.
func (s *Storage) firstSlot() (treepath.Path, bool) {
	var best treepath.Path
	for _, n := range s.index.Nodes() {
		if n.Path.IsRoot() || n.Path.Last() != treepath.Sentinel {
			continue
		}
		if best == nil || n.Path.Len() < best.Len() {
			best = n.Path
		}
	}
	return best, best != nil
}

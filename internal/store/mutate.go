package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/ingest"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/agentic-research/florg/internal/writeback"
	"github.com/go-git/go-billy/v5/util"
)

func checkOrdinary(p treepath.Path) error {
	if p.HasSentinel() {
		return fmt.Errorf("%w: %q uses the reserved component", ErrConflict, p.Human())
	}
	return nil
}

// ReplaceNode writes n.Raw, trimmed, as the content of n.Path, creating the
// node and its directory when missing.
func (s *Storage) ReplaceNode(ctx context.Context, n graph.Node, commit bool) (graph.Node, error) {
	if err := checkOrdinary(n.Path); err != nil {
		return graph.Node{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, verb, err := s.replaceLocked(n.Path, n.Raw)
	if err != nil {
		return graph.Node{}, err
	}
	if commit {
		msg := fmt.Sprintf("%s node %s '%s'", verb, display(n.Path), node.Header.Title)
		if err := s.commit(ctx, msg); err != nil {
			return node, err
		}
	}
	return node, nil
}

// replaceLocked writes raw to p and updates the index. It returns the verb
// of the commit message: "Added" for new nodes and placeholders.
func (s *Storage) replaceLocked(p treepath.Path, raw string) (graph.Node, string, error) {
	content := strings.TrimSpace(raw)
	name := contentFile(p)
	verb := "Added"
	prior, err := util.ReadFile(s.fs, name)
	switch {
	case err == nil:
		if string(prior) != graph.PlaceholderMarker {
			verb = "Changed"
		}
	case !errors.Is(err, fs.ErrNotExist):
		return graph.Node{}, "", ioErr("read", name, err)
	}

	if err := writeback.WriteFile(s.fs, name, []byte(content)); err != nil {
		return graph.Node{}, "", ioErr("write", name, err)
	}

	node := graph.NewNode(p, content)
	s.index.Remove(p)
	s.index.Put(node)
	s.index.Normalize()
	return node, verb, nil
}

// DeleteNode removes p and its whole subtree.
func (s *Storage) DeleteNode(ctx context.Context, p treepath.Path, commit bool) error {
	if p.IsRoot() {
		return fmt.Errorf("%w: the root cannot be deleted", ErrConflict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.index.Has(p) {
		return fmt.Errorf("%w: %q", ErrNotFound, p.Human())
	}
	if err := util.RemoveAll(s.fs, p.Dir()); err != nil {
		s.resync(err)
		return ioErr("remove", p.Dir(), err)
	}
	s.index.RemovePrefix(p)
	s.index.Normalize()
	s.pruneEmptyDirs(p)

	if commit {
		return s.commit(ctx, fmt.Sprintf("Deleted node %s and children", display(p)))
	}
	return nil
}

// MoveNode renames from, with its subtree, to the unoccupied path to.
func (s *Storage) MoveNode(ctx context.Context, from, to treepath.Path, commit bool) error {
	switch {
	case from.IsRoot() || to.IsRoot():
		return fmt.Errorf("%w: the root cannot be moved", ErrConflict)
	case to.StartsWith(from):
		return fmt.Errorf("%w: %q is inside %q", ErrConflict, to.Human(), from.Human())
	}
	if err := checkOrdinary(from); err != nil {
		return err
	}
	if err := checkOrdinary(to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.index.Has(from) {
		return fmt.Errorf("%w: %q", ErrNotFound, from.Human())
	}
	if s.index.Has(to) {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, to.Human())
	}

	if err := s.rename(from, to); err != nil {
		s.resync(err)
		return err
	}
	s.index.Rebase(from, to)
	s.index.Normalize()
	s.pruneEmptyDirs(from)

	if commit {
		return s.commit(ctx, fmt.Sprintf("Moved node %s to %s", display(from), display(to)))
	}
	return nil
}

// RemovePlaceholder drops the node at p if it still holds the edit marker
// and nothing else lives in its directory. It reports whether it did.
func (s *Storage) RemovePlaceholder(p treepath.Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removePlaceholderLocked(p)
}

func (s *Storage) removePlaceholderLocked(p treepath.Path) (bool, error) {
	n, ok := s.index.Get(p)
	if !ok || !n.IsMarker() || p.IsRoot() {
		return false, nil
	}
	entries, err := s.fs.ReadDir(p.Dir())
	if err != nil {
		return false, ioErr("readdir", p.Dir(), err)
	}
	for _, e := range entries {
		if e.Name() != ingest.ContentFile {
			return false, nil
		}
	}
	if err := util.RemoveAll(s.fs, p.Dir()); err != nil {
		return false, ioErr("remove", p.Dir(), err)
	}
	s.index.Remove(p)
	s.index.Normalize()
	s.pruneEmptyDirs(p)
	return true, nil
}

// rename moves the directory of from to the location of to. Missing parent
// directories of to are created by the filesystem.
func (s *Storage) rename(from, to treepath.Path) error {
	if err := s.fs.Rename(from.Dir(), to.Dir()); err != nil {
		return ioErr("rename", from.Dir()+" -> "+to.Dir(), err)
	}
	return nil
}

// pruneEmptyDirs removes now-empty directories above a vacated path that no
// index entry needs any more. Remove refuses non-empty directories, which
// ends the walk.
func (s *Storage) pruneEmptyDirs(vacated treepath.Path) {
	p, ok := vacated.Parent()
	for ok && !p.IsRoot() && !s.index.Has(p) {
		if err := s.fs.Remove(p.Dir()); err != nil {
			return
		}
		p, ok = p.Parent()
	}
}

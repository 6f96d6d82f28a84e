package store

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/agentic-research/florg/internal/writeback"
)

// EditSession is an open edit of one node through a temp file.
type EditSession struct {
	Path treepath.Path
	// File is the absolute location of the temp file.
	File string
	// Line is where the node text starts in File.
	Line int
	Text string
}

// BeginEdit writes the temp file for p. When nothing exists at p yet, the
// placeholder marker reserves the slot until FinishEdit.
func (s *Storage) BeginEdit(_ context.Context, p treepath.Path) (*EditSession, error) {
	if err := checkOrdinary(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, exists := s.index.Get(p)
	title := func(prefix treepath.Path) string {
		if a, ok := s.index.Get(prefix); ok {
			return a.Header.Title
		}
		return ""
	}
	text := writeback.EditText(p, title, n.Raw)
	name := writeback.EditFileName(p)
	if err := writeback.WriteFile(s.fs, name, []byte(text)); err != nil {
		return nil, ioErr("write", name, err)
	}

	if !exists {
		if _, _, err := s.replaceLocked(p, graph.PlaceholderMarker); err != nil {
			return nil, err
		}
	}
	return &EditSession{
		Path: p.Clone(),
		File: filepath.Join(s.root, name),
		Line: writeback.EditLine(p),
		Text: text,
	}, nil
}

// FinishEdit closes the session for p. An aborted, empty or unchanged edit
// only drops an unused placeholder; anything else becomes the node text and
// is committed. It reports whether the node changed.
func (s *Storage) FinishEdit(ctx context.Context, p treepath.Path, text string, ok bool) (bool, error) {
	name := writeback.EditFileName(p)
	s.mu.Lock()
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.mu.Unlock()
		return false, ioErr("remove", name, err)
	}
	current, _ := s.index.Get(p)
	s.mu.Unlock()

	content := writeback.ParseEditText(text)
	if !ok || content == "" || content == current.Raw {
		_, err := s.RemovePlaceholder(p)
		return false, err
	}
	if _, err := s.ReplaceNode(ctx, graph.NewNode(p, content), true); err != nil {
		return false, err
	}
	return true, nil
}

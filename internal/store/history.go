package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/agentic-research/florg/internal/settings"
	"github.com/agentic-research/florg/internal/versioning"
	"github.com/agentic-research/florg/internal/writeback"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// HistoryDir holds the named navigation lists.
const HistoryDir = "history"

var (
	listName  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	listItems = jp.MustParseString("$[*]")
)

// Init prepares the version control repository when the bridge supports
// it and records anything uncommitted. It is safe to call on every start.
func (s *Storage) Init(ctx context.Context) error {
	initer, ok := s.bridge.(interface{ Init(context.Context) error })
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := initer.Init(ctx); err != nil {
		return ioErr("init", s.root, err)
	}
	return nil
}

// History lists recent commits, newest first.
func (s *Storage) History(ctx context.Context, limit int) ([]versioning.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	commits, err := s.bridge.History(ctx, limit)
	if err != nil {
		return nil, ioErr("history", "", err)
	}
	return commits, nil
}

// Undo restores the tree recorded at hash as a new commit and reloads.
func (s *Storage) Undo(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bridge.Undo(ctx, hash); err != nil {
		if errors.Is(err, versioning.ErrUnknownRevision) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		s.resync(err)
		return ioErr("undo", hash, err)
	}
	return s.reloadLocked()
}

func listFile(name string) (string, error) {
	if !listName.MatchString(name) {
		return "", fmt.Errorf("%w: list name %q", ErrInvalid, name)
	}
	return filepath.Join(HistoryDir, name+".json"), nil
}

// HistoryGet reads the named list. A missing list is empty.
func (s *Storage) HistoryGet(name string) ([]string, error) {
	file, err := listFile(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := util.ReadFile(s.fs, file)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, ioErr("read", file, err)
	}
	doc, err := oj.Parse(raw)
	if err != nil {
		return nil, ioErr("parse", file, err)
	}
	entries := []string{}
	for _, v := range listItems.Get(doc) {
		if str, ok := v.(string); ok {
			entries = append(entries, str)
		}
	}
	return entries, nil
}

// HistoryStore replaces the named list. Lists are not committed.
func (s *Storage) HistoryStore(name string, entries []string) error {
	file, err := listFile(name)
	if err != nil {
		return err
	}
	doc := make([]any, len(entries))
	for i, e := range entries {
		doc[i] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeback.WriteFile(s.fs, file, []byte(oj.JSON(doc))); err != nil {
		return ioErr("write", file, err)
	}
	return nil
}

// StoreSettings validates raw and, if it parses, replaces settings.hcl and
// commits. Invalid text leaves the file untouched.
func (s *Storage) StoreSettings(ctx context.Context, raw string) error {
	parsed, err := settings.Parse([]byte(raw), settings.FileName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeback.WriteFile(s.fs, settings.FileName, []byte(raw)); err != nil {
		return ioErr("write", settings.FileName, err)
	}
	s.settings = parsed
	return s.commit(ctx, "Changed settings")
}

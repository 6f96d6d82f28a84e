// Package store owns the note tree: the in-memory index, the directory tree
// backing it and the version control bridge recording every change.
//
// Mutations follow one pattern: validate, change the filesystem, update the
// index, then commit. Validation failures leave everything untouched. When a
// multi-step filesystem sequence fails halfway the index is reloaded from
// disk before the error is returned.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/agentic-research/florg/internal/control"
	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/ingest"
	"github.com/agentic-research/florg/internal/settings"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/agentic-research/florg/internal/versioning"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Options configures Open.
type Options struct {
	// Bridge records mutations. nil builds a GitBridge from settings.
	Bridge versioning.Bridge
	// GitBinary overrides the git executable from settings.
	GitBinary string
	// NoLock skips the single-process lock file.
	NoLock bool
	Logger *slog.Logger
}

// Storage is the note tree of one data root. It is safe for concurrent use;
// one mutex serializes every operation.
type Storage struct {
	mu       sync.Mutex
	root     string
	fs       billy.Filesystem
	engine   *ingest.Engine
	index    *graph.Index
	report   *ingest.Report
	settings *settings.Settings
	bridge   versioning.Bridge
	lock     *control.Lock
	logger   *slog.Logger
}

// Open loads the data root at root, creating the directory if needed.
func Open(root string, opts Options) (*Storage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioErr("resolve", root, err)
	}

	s := &Storage{
		root:   abs,
		fs:     osfs.New(abs, osfs.WithBoundOS()),
		engine: ingest.NewEngine(logger),
		logger: logger.With("root", abs),
	}
	if err := s.fs.MkdirAll(".", 0o755); err != nil {
		return nil, ioErr("mkdir", abs, err)
	}

	if !opts.NoLock {
		if s.lock, err = control.Acquire(abs); err != nil {
			return nil, err
		}
	}

	s.settings = s.loadSettings()
	s.bridge = opts.Bridge
	if s.bridge == nil {
		binary := opts.GitBinary
		if binary == "" {
			binary = s.settings.GitBinary()
		}
		s.bridge = versioning.NewGitBridge(abs, versioning.GitOptions{
			Binary:  binary,
			Timeout: s.settings.GitTimeout(),
			Logger:  logger,
		})
	}

	if err := s.reloadLocked(); err != nil {
		_ = s.lock.Release()
		return nil, err
	}
	return s, nil
}

// Close releases the data root lock.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Release()
}

// Root returns the absolute data root.
func (s *Storage) Root() string { return s.root }

// Reload rebuilds the index and settings from disk.
func (s *Storage) Reload() (*ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s.report, nil
}

func (s *Storage) reloadLocked() error {
	ix, report, err := s.engine.Load(s.fs)
	if err != nil {
		return ioErr("load", s.root, err)
	}
	s.index, s.report = ix, report
	s.settings = s.loadSettings()
	return nil
}

// resync trusts the disk again after a partial multi-step failure.
func (s *Storage) resync(cause error) {
	s.logger.Warn("resynchronizing index after failure", "error", cause)
	if err := s.reloadLocked(); err != nil {
		s.logger.Error("reload after failure", "error", err)
	}
}

func (s *Storage) loadSettings() *settings.Settings {
	raw, err := util.ReadFile(s.fs, settings.FileName)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("reading settings", "error", err)
		}
		return settings.Default()
	}
	parsed, err := settings.Parse(raw, settings.FileName)
	if err != nil {
		s.logger.Warn("ignoring invalid settings", "error", err)
		return settings.Default()
	}
	return parsed
}

// Get returns the node at p, which may be a synthesized placeholder.
func (s *Storage) Get(p treepath.Path) (graph.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Get(p)
}

// ChildrenOf lists the direct children of p by ascending component.
func (s *Storage) ChildrenOf(p treepath.Path) []graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Children(p)
}

// Ancestors pairs each component of p with the title found at that prefix.
func (s *Storage) Ancestors(p treepath.Path) []graph.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Ancestors(p)
}

// FindNextEmptyChild returns the first free child slot of p.
func (s *Storage) FindNextEmptyChild(p treepath.Path) (treepath.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.index.NextEmptyChild(p)
	if !ok {
		return nil, fmt.Errorf("%w below %q", ErrExhausted, p.Human())
	}
	return next, nil
}

// Nodes returns a snapshot of the whole index in path order.
func (s *Storage) Nodes() []graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Nodes()
}

func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

// StaleSentinels lists nodes parked by an interrupted reorder.
func (s *Storage) StaleSentinels() []treepath.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.StalePaths()
}

// Settings returns the current settings.
func (s *Storage) Settings() *settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Export writes the index into a SQLite catalog at dbPath.
func (s *Storage) Export(dbPath string) (int, error) {
	nodes := s.Nodes()
	n, err := ingest.Export(dbPath, nodes)
	if err != nil {
		return 0, ioErr("export", dbPath, err)
	}
	return n, nil
}

func (s *Storage) commit(ctx context.Context, message string) error {
	if err := s.bridge.Commit(ctx, message); err != nil {
		return ioErr("commit", "", err)
	}
	s.logger.Debug("commit", "message", message)
	return nil
}

func contentFile(p treepath.Path) string {
	return filepath.Join(p.Dir(), ingest.ContentFile)
}

func cacheFile(p treepath.Path) string {
	return filepath.Join(p.Dir(), ingest.CacheFile)
}

// display renders p for commit messages.
func display(p treepath.Path) string {
	if p.IsRoot() {
		return "(root)"
	}
	return p.Human()
}

func (s *Storage) exists(name string) bool {
	_, err := s.fs.Lstat(name)
	return err == nil
}

// Package watch reloads the store when the data root is changed behind its
// back, for example by a git checkout or another editor.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of events to end.
const DefaultDebounce = 250 * time.Millisecond

// Reloader is what gets called after a burst of changes.
type Reloader interface {
	Reload() error
}

// ReloadFunc adapts a function to Reloader.
type ReloadFunc func() error

func (f ReloadFunc) Reload() error { return f() }

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Ignore holds base-name globs. Matching directories are not watched.
	Ignore []string
	Logger *slog.Logger
}

// DefaultIgnore skips the repository, editor temp files, the render cache,
// the lock file and in-flight atomic writes.
var DefaultIgnore = []string{".git", "*.temp.adoc", "node.cache", ".florg.lock", ".florg-write-*", "*.swp", "*~"}

// Watcher batches filesystem events below a root and calls a Reloader once
// per batch. The Reloader is only ever called from one goroutine.
type Watcher struct {
	root     string
	target   Reloader
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	events   chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	reloads int
}

// New creates a watcher; call Start to begin.
func New(root string, target Reloader, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		root:     root,
		target:   target,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
		logger:   opts.Logger,
		fsw:      fsw,
		events:   make(chan string, 256),
		done:     make(chan struct{}),
	}, nil
}

// Start registers every directory below the root and starts the event and
// debounce loops. They exit on Stop or when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching and waits for the loops to return.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
	w.wg.Wait()
}

// Reloads reports how many batches have been delivered.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first == ".git"
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// nested directories may already exist when a subtree is moved in
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("watch directory", "path", ev.Name, "err", err)
					}
				}
			}
			select {
			case w.events <- ev.Name:
			default:
				// a reload is pending anyway
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var (
		pending int
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if pending == 0 {
			return
		}
		w.logger.Debug("reloading after external change", "events", pending)
		pending = 0
		if err := w.target.Reload(); err != nil {
			w.logger.Error("reload failed", "err", err)
		}
		w.mu.Lock()
		w.reloads++
		w.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.events:
			pending++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// Package ingest builds the in-memory node index from a data root and
// exports it to other formats.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Fixed file names inside a node directory.
const (
	ContentFile = "node.adoc"
	CacheFile   = "node.cache"
)

// reserved root entries that are not part of the tree.
var reserved = map[string]bool{
	"history": true,
	"temp":    true,
}

// Skip records a subtree that could not be addressed.
type Skip struct {
	Dir string
	Err error
}

// Report describes anomalies found while loading.
type Report struct {
	Skipped []Skip
	// StaleSentinels lists content left in a parking slot by an interrupted
	// reorder.
	StaleSentinels []treepath.Path
}

// Engine walks a data root into a graph.Index.
type Engine struct {
	Logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Logger: logger}
}

// Load reads every content file below the filesystem root. Directory names
// that are not path components skip their subtree; they are reported, not
// fatal.
func (e *Engine) Load(bfs billy.Filesystem) (*graph.Index, *Report, error) {
	report := &Report{}
	var nodes []graph.Node

	err := util.Walk(bfs, "", func(rel string, info os.FileInfo, err error) error {
		if err != nil {
			if rel == "" {
				return err
			}
			e.Logger.Warn("unreadable entry", "path", rel, "error", err)
			report.Skipped = append(report.Skipped, Skip{Dir: rel, Err: err})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == "" {
			return nil
		}

		name := info.Name()
		if info.IsDir() {
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if filepath.Dir(rel) == "." && reserved[name] {
				return filepath.SkipDir
			}
			if _, perr := treepath.ParseSegment(name); perr != nil {
				e.Logger.Warn("skipping subtree", "dir", rel, "error", perr)
				report.Skipped = append(report.Skipped, Skip{Dir: rel, Err: perr})
				return filepath.SkipDir
			}
			return nil
		}

		if name != ContentFile || !info.Mode().IsRegular() {
			return nil
		}
		p, perr := treepath.FromDirectory(filepath.Dir(rel))
		if perr != nil {
			// Ancestors were validated on the way down.
			return fmt.Errorf("derive path for %s: %w", rel, perr)
		}
		raw, rerr := util.ReadFile(bfs, rel)
		if rerr != nil {
			return fmt.Errorf("read %s: %w", rel, rerr)
		}
		n := graph.NewNode(p, string(raw))
		if p.HasSentinel() {
			e.Logger.Warn("content parked in sentinel slot", "path", p.Human())
			report.StaleSentinels = append(report.StaleSentinels, p)
		}
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("data root missing: %w", err)
		}
		return nil, nil, fmt.Errorf("walk data root: %w", err)
	}

	ix := graph.NewIndex(nodes)
	e.Logger.Debug("index loaded", "nodes", ix.Len(), "skipped", len(report.Skipped))
	return ix, report, nil
}

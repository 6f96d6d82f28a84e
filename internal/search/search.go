// Package search runs a line matcher over the note files below a node and
// annotates the hits with titles from the tree.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/florg/api"
	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/ingest"
	"github.com/agentic-research/florg/internal/treepath"
)

// Line is one match inside a file.
type Line struct {
	Number int
	Text   string
}

// Hit groups the matching lines of one file, relative to the searched
// directory.
type Hit struct {
	File  string
	Lines []Line
}

// Searcher finds lines matching term in note files below dir.
type Searcher interface {
	Search(ctx context.Context, dir, term string) ([]Hit, error)
}

// Ripgrep is a Searcher backed by the rg binary.
type Ripgrep struct {
	Binary  string
	Timeout time.Duration
}

func (r *Ripgrep) Search(ctx context.Context, dir, term string) ([]Hit, error) {
	binary := r.Binary
	if binary == "" {
		binary = "rg"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary,
		"--type-add", "adoc:*.adoc", "-t", "adoc",
		"-i", "--line-number", "--heading", "--color", "never",
		"--", term)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		// rg exits 1 when nothing matched
		if errors.As(err, &exit) && exit.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}
	return ParseHeading(stdout.String()), nil
}

// ParseHeading reads rg --heading --line-number output: a file name line,
// then "<n>:<text>" lines, blocks separated by blank lines.
func ParseHeading(out string) []Hit {
	var hits []Hit
	for _, block := range strings.Split(out, "\n\n") {
		lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}
		h := Hit{File: strings.TrimPrefix(lines[0], "./")}
		for _, l := range lines[1:] {
			num, text, ok := strings.Cut(l, ":")
			if !ok {
				continue
			}
			n, _ := strconv.Atoi(num)
			h.Lines = append(h.Lines, Line{Number: n, Text: text})
		}
		hits = append(hits, h)
	}
	return hits
}

// Lookup is the part of the store Annotate reads.
type Lookup interface {
	Get(p treepath.Path) (graph.Node, bool)
}

// Annotate turns hits found below base into results carrying the node's
// title and its ancestors' titles, sorted by path. Hits outside node
// content files are dropped.
func Annotate(base treepath.Path, hits []Hit, lookup Lookup) []api.SearchResult {
	titleOf := func(p treepath.Path) string {
		if n, ok := lookup.Get(p); ok {
			return n.Header.Title
		}
		return graph.EmptyTitle
	}

	type keyed struct {
		path treepath.Path
		res  api.SearchResult
	}
	var out []keyed
	for _, h := range hits {
		file := filepath.ToSlash(h.File)
		if filepath.Base(file) != ingest.ContentFile {
			continue
		}
		rel, err := treepath.FromDirectory(filepath.Dir(file))
		if err != nil {
			continue
		}
		p := append(base.Clone(), rel...)

		res := api.SearchResult{Path: p.Human(), Title: titleOf(p), ParentTitles: []string{}}
		for cur, ok := p.Parent(); ok; cur, ok = cur.Parent() {
			res.ParentTitles = append(res.ParentTitles, titleOf(cur))
		}
		for _, l := range h.Lines {
			res.Lines = append(res.Lines, api.SearchLine{Number: l.Number, Text: l.Text})
		}
		out = append(out, keyed{path: p, res: res})
	}
	slices.SortFunc(out, func(a, b keyed) int { return treepath.Compare(a.path, b.path) })

	results := make([]api.SearchResult, len(out))
	for i, k := range out {
		results[i] = k.res
	}
	return results
}

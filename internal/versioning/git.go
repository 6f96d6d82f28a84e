// Package versioning records every tree mutation in an external version
// control system and replays history for undo.
package versioning

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// InitialMessage is the first commit of a fresh data root.
const InitialMessage = "Capturing status quo on new florg data path"

// Ignored lists the .gitignore entries every data root carries. Named
// lists under history/ stay out of commits and survive undo.
var Ignored = []string{"*.temp.adoc", "node.cache", ".florg.lock", "/history/"}

// Commit is one history entry.
type Commit struct {
	Hash    string    `json:"hash"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// Bridge is the capability the store needs from version control.
type Bridge interface {
	// Commit stages everything below the data root and records it.
	// Nothing to record is not an error.
	Commit(ctx context.Context, message string) error
	// History lists recent commits, newest first. limit <= 0 means all.
	History(ctx context.Context, limit int) ([]Commit, error)
	// Undo restores the tree of hash as a new commit on top of history.
	Undo(ctx context.Context, hash string) error
}

// ErrUnknownRevision is returned by Undo for a hash that names no commit.
var ErrUnknownRevision = errors.New("unknown revision")

// GitOptions configures a GitBridge.
type GitOptions struct {
	// Binary is the git executable; "" means "git" from PATH.
	Binary string
	// Timeout bounds each git invocation; 0 means 30s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// GitBridge shells out to git in the data root.
type GitBridge struct {
	dir     string
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewGitBridge(dir string, opts GitOptions) *GitBridge {
	if opts.Binary == "" {
		opts.Binary = "git"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &GitBridge{dir: dir, binary: opts.Binary, timeout: opts.Timeout, logger: opts.Logger}
}

func (g *GitBridge) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s: timeout after %v", args[0], g.timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Init turns the data root into a repository: git init, the ignore file, a
// fallback identity and the initial commit. Running it again is harmless.
func (g *GitBridge) Init(ctx context.Context) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create data root: %w", err)
	}
	if _, err := os.Stat(filepath.Join(g.dir, ".git")); errors.Is(err, os.ErrNotExist) {
		if _, err := g.run(ctx, "init", "--quiet"); err != nil {
			return err
		}
	}
	if err := g.ensureIgnored(); err != nil {
		return err
	}
	if _, err := g.run(ctx, "config", "user.name"); err != nil {
		if _, err := g.run(ctx, "config", "user.name", "florg"); err != nil {
			return err
		}
	}
	if _, err := g.run(ctx, "config", "user.email"); err != nil {
		if _, err := g.run(ctx, "config", "user.email", "florg@localhost"); err != nil {
			return err
		}
	}
	return g.Commit(ctx, InitialMessage)
}

func (g *GitBridge) ensureIgnored() error {
	path := filepath.Join(g.dir, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read .gitignore: %w", err)
	}
	have := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		have[strings.TrimSpace(line)] = true
	}
	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		b.WriteByte('\n')
	}
	added := false
	for _, pattern := range Ignored {
		if !have[pattern] {
			b.WriteString(pattern + "\n")
			added = true
		}
	}
	if !added {
		return nil
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}
	return nil
}

func (g *GitBridge) Commit(ctx context.Context, message string) error {
	if _, err := g.run(ctx, "add", "--all", "."); err != nil {
		return err
	}
	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return err
	}
	if status == "" {
		g.logger.Debug("nothing to commit", "message", message)
		return nil
	}
	if _, err := g.run(ctx, "commit", "--quiet", "-m", message); err != nil {
		return err
	}
	g.logger.Debug("committed", "message", message)
	return nil
}

// hasHead reports whether the repository has at least one commit.
func (g *GitBridge) hasHead(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}

func (g *GitBridge) History(ctx context.Context, limit int) ([]Commit, error) {
	if !g.hasHead(ctx) {
		return nil, nil
	}
	// Separator unlikely to appear in commit messages.
	const sep = "|||FLORG_SEP|||"
	args := []string{"log", "--pretty=format:%H%n%aI%n%B" + sep}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.Index(data, []byte(sep)); i >= 0 {
			return i + len(sep), data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	})
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		lines := strings.SplitN(text, "\n", 3)
		if len(lines) < 2 {
			continue
		}
		c := Commit{Hash: lines[0]}
		if t, err := time.Parse(time.RFC3339, lines[1]); err == nil {
			c.Date = t
		}
		if len(lines) == 3 {
			c.Message = strings.TrimSpace(lines[2])
		}
		commits = append(commits, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read git log: %w", err)
	}
	return commits, nil
}

// Undo resets the working tree to hash and records that state as a new
// commit on top of the current head, so the undo itself can be undone.
func (g *GitBridge) Undo(ctx context.Context, hash string) error {
	target, err := g.run(ctx, "rev-parse", "--verify", "--quiet", hash+"^{commit}")
	if err != nil || target == "" {
		return fmt.Errorf("%w: %q", ErrUnknownRevision, hash)
	}
	subject, err := g.run(ctx, "log", "-1", "--format=%s", target)
	if err != nil {
		return err
	}
	head, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return err
	}
	if _, err := g.run(ctx, "reset", "--hard", target); err != nil {
		return err
	}
	if _, err := g.run(ctx, "reset", "--soft", head); err != nil {
		return err
	}
	msg := fmt.Sprintf("Undo to %s: %s", short(target), subject)
	if _, err := g.run(ctx, "commit", "--quiet", "--allow-empty", "-m", msg); err != nil {
		return err
	}
	g.logger.Debug("undo", "target", target, "previous", head)
	return nil
}

func short(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

var _ Bridge = (*GitBridge)(nil)

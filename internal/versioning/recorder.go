package versioning

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Recorder is an in-memory Bridge. It remembers commit messages and undo
// targets without touching any repository.
type Recorder struct {
	mu      sync.Mutex
	commits []Commit
	undos   []string
	// Err, when set, is returned by every call.
	Err error
}

func (r *Recorder) Commit(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.commits = append(r.commits, Commit{
		Hash:    fmt.Sprintf("%040x", len(r.commits)+1),
		Date:    time.Now(),
		Message: message,
	})
	return nil
}

func (r *Recorder) History(_ context.Context, limit int) ([]Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := slices.Clone(r.commits)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Recorder) Undo(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.undos = append(r.undos, hash)
	return nil
}

// Messages returns recorded commit messages, oldest first.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commits))
	for i, c := range r.commits {
		out[i] = c.Message
	}
	return out
}

// Undos returns the hashes passed to Undo.
func (r *Recorder) Undos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.undos)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = nil
	r.undos = nil
}

var _ Bridge = (*Recorder)(nil)

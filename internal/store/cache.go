package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agentic-research/florg/internal/treepath"
	"github.com/agentic-research/florg/internal/writeback"
	"github.com/go-git/go-billy/v5/util"
)

func contentHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GetCached returns the rendering stored for p if it was computed from the
// node's current text. Anything else is a miss.
func (s *Storage) GetCached(p treepath.Path) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.index.Get(p)
	if !ok {
		return "", false
	}
	data, err := util.ReadFile(s.fs, cacheFile(p))
	if err != nil {
		return "", false
	}
	hash, payload, ok := strings.Cut(string(data), "\n")
	if !ok || hash != contentHash(n.Raw) {
		return "", false
	}
	return payload, true
}

// SetCached stores payload as the rendering of raw at p, replacing any
// earlier entry.
func (s *Storage) SetCached(p treepath.Path, raw, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.index.Has(p) {
		return fmt.Errorf("%w: %q", ErrNotFound, p.Human())
	}
	name := cacheFile(p)
	if err := writeback.WriteFile(s.fs, name, []byte(contentHash(raw)+"\n"+payload)); err != nil {
		return ioErr("write", name, err)
	}
	return nil
}

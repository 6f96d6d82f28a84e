package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) (*Watcher, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	w, err := New(root, ReloadFunc(func() error {
		calls.Add(1)
		return nil
	}), Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return w, &calls
}

func TestWatcher_BurstCoalesces(t *testing.T) {
	root := t.TempDir()
	_, calls := startWatcher(t, root)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "settings.hcl"), []byte("nav = {}"), 0o644))
	}
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	root := t.TempDir()
	w, _ := startWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "0"), 0o755))
	assert.Eventually(t, func() bool { return w.Reloads() >= 1 }, 2*time.Second, 10*time.Millisecond)

	before := w.Reloads()
	require.NoError(t, os.WriteFile(filepath.Join(root, "0", "node.adoc"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return w.Reloads() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOwnFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	_, calls := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "objects", "ab"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node.cache"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "root.temp.adoc"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

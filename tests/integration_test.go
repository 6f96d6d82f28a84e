package tests

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentic-research/florg/internal/service"
	"github.com/agentic-research/florg/internal/store"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/agentic-research/florg/internal/versioning"
	"github.com/agentic-research/florg/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFixture is a git-backed data root opened through the facade.
type testFixture struct {
	root string
	st   *store.Storage
	svc  *service.Service
	ctx  context.Context
}

func setup(t *testing.T) *testFixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	st, err := store.Open(root, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Init(ctx))
	return &testFixture{root: root, st: st, svc: service.New(st, nil), ctx: ctx}
}

func (f *testFixture) messages(t *testing.T) []string {
	t.Helper()
	entries, err := f.svc.History(f.ctx, 0)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func (f *testFixture) set(t *testing.T, h, text string) {
	t.Helper()
	_, err := f.svc.ChangeNodeText(f.ctx, h, text)
	require.NoError(t, err)
}

func (f *testFixture) title(t *testing.T, h string) string {
	t.Helper()
	view, err := f.svc.GetNode(h)
	require.NoError(t, err)
	require.NotNil(t, view.Node, "no note at %q", h)
	return view.Node.Header.Title
}

func TestGitHistoryOfMutations(t *testing.T) {
	f := setup(t)
	f.set(t, "A", "Inbox")
	f.set(t, "AA", "first")
	f.set(t, "AB", "second")
	require.NoError(t, f.svc.SwapNext(f.ctx, "AA"))
	require.NoError(t, f.svc.MoveNode(f.ctx, "AB", "B"))
	require.NoError(t, f.svc.DeleteNode(f.ctx, "B"))

	assert.Equal(t, []string{
		"Deleted node B and children",
		"Moved node AB to B",
		"Swapped AA with AB",
		"Added node AB 'second'",
		"Added node AA 'first'",
		"Added node A 'Inbox'",
		versioning.InitialMessage,
	}, f.messages(t))

	// the ignore file keeps caches and locks out of history
	ignore, err := os.ReadFile(filepath.Join(f.root, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range versioning.Ignored {
		assert.Contains(t, string(ignore), pattern)
	}
	require.NoError(t, f.svc.SetCached("A", "Inbox", "<h1>Inbox</h1>"))
	status, err := exec.Command("git", "-C", f.root, "status", "--porcelain").Output()
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(status)))
}

func TestUndoRestoresTreeAsNewCommit(t *testing.T) {
	f := setup(t)
	f.set(t, "A", "Keep")
	f.set(t, "AA", "child")

	entries, err := f.svc.History(f.ctx, 1)
	require.NoError(t, err)
	checkpoint := entries[0].Hash

	require.NoError(t, f.svc.MoveNode(f.ctx, "A", "C"))
	f.set(t, "CB", "later")
	require.NoError(t, f.svc.Undo(f.ctx, checkpoint))

	assert.Equal(t, "Keep", f.title(t, "A"))
	assert.Equal(t, "child", f.title(t, "AA"))
	view, err := f.svc.GetNode("C")
	require.NoError(t, err)
	assert.Nil(t, view.Node)

	msgs := f.messages(t)
	assert.True(t, strings.HasPrefix(msgs[0], "Undo to "+checkpoint[:7]+": "), msgs[0])
	assert.Len(t, msgs, 6, "undo adds history, never removes it")

	assert.ErrorIs(t, f.svc.Undo(f.ctx, "0000000000000000000000000000000000000000"), store.ErrNotFound)
}

func TestHistoryListsStayOutOfCommits(t *testing.T) {
	f := setup(t)
	f.set(t, "A", "first")
	entries, err := f.svc.History(f.ctx, 1)
	require.NoError(t, err)
	checkpoint := entries[0].Hash

	require.NoError(t, f.svc.HistoryStore("recent", []string{"A", "B"}))
	f.set(t, "B", "second")

	tracked, err := exec.Command("git", "-C", f.root, "ls-files", store.HistoryDir).Output()
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(tracked)))

	require.NoError(t, f.svc.Undo(f.ctx, checkpoint))
	list, err := f.svc.HistoryGet("recent")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, list, "undo keeps lists")
}

func TestSortAndCompactSurviveReload(t *testing.T) {
	f := setup(t)
	for _, kv := range [][2]string{{"A", "10 ten"}, {"C", "2 two"}, {"F", "1 one"}, {"FA", "one's child"}} {
		f.set(t, kv[0], kv[1])
	}
	moved, err := f.svc.SortChildren(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	_, err = f.svc.Reload()
	require.NoError(t, err)
	assert.Equal(t, "1 one", f.title(t, "A"))
	assert.Equal(t, "one's child", f.title(t, "AA"))
	assert.Equal(t, "2 two", f.title(t, "B"))
	assert.Equal(t, "10 ten", f.title(t, "C"))

	_, err = os.Stat(filepath.Join(f.root, "4294967295"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "Sorted children of (root)", f.messages(t)[0])
}

func TestWatcherPicksUpExternalEdits(t *testing.T) {
	f := setup(t)
	f.set(t, "A", "before")

	w, err := watch.New(f.root, watch.ReloadFunc(func() error {
		_, err := f.svc.Reload()
		return err
	}), watch.Options{Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "1", "node.adoc"), []byte("from outside"), 0o644))

	assert.Eventually(t, func() bool {
		_, ok := f.st.Get(treepath.MustParseHuman("B"))
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCalendarThenSearch(t *testing.T) {
	f := setup(t)
	if _, err := exec.LookPath("rg"); err != nil {
		t.Skip("rg not installed")
	}
	f.set(t, "D", "Diary")
	_, err := f.svc.CreateCalendar(f.ctx, "D", 2024)
	require.NoError(t, err)
	day := "D" + service.DateToPath(time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC))
	f.set(t, day, "2024-07-04 (Thu KW 27)\n\nFireworks at the lake")

	results, err := f.svc.Search(f.ctx, "D", "fireworks")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, day, results[0].Path)
	assert.Equal(t, []string{"Jul 2024", "Diary", "(empty node)"}, results[0].ParentTitles)
	assert.Equal(t, 3, results[0].Lines[0].Number)
}

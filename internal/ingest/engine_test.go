package ingest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNode(t *testing.T, root, dir, text string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(dir))
	require.NoError(t, os.MkdirAll(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, ContentFile), []byte(text), 0o644))
}

func TestEngine_Load(t *testing.T) {
	root := t.TempDir()
	writeNode(t, root, "", "Root")
	writeNode(t, root, "0", "Projects\n\nAll of them")
	writeNode(t, root, "0/2", "Third")
	writeNode(t, root, "1/30/31", "Deep")
	writeNode(t, root, "notes/0", "ignored")
	writeNode(t, root, "history/0", "ignored")
	writeNode(t, root, ".git/0", "ignored")
	require.NoError(t, os.WriteFile(filepath.Join(root, "0", CacheFile), []byte("x"), 0o644))

	ix, report, err := NewEngine(nil).Load(osfs.New(root, osfs.WithBoundOS()))
	require.NoError(t, err)

	n, ok := ix.Get(treepath.MustParseHuman("A"))
	require.True(t, ok)
	assert.Equal(t, "Projects", n.Header.Title)
	assert.Equal(t, "All of them", n.Header.FirstParagraph)

	deep, ok := ix.Get(treepath.MustParseHuman("B30/31"))
	require.True(t, ok)
	assert.Equal(t, "Deep", deep.Raw)

	gap, ok := ix.Get(treepath.MustParseHuman("B30"))
	require.True(t, ok)
	assert.True(t, gap.Synthesized)
	assert.Equal(t, graph.EmptyTitle, gap.Header.Title)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "notes", report.Skipped[0].Dir)
	assert.ErrorIs(t, report.Skipped[0].Err, treepath.ErrParse)
	assert.Empty(t, report.StaleSentinels)

	// closure holds for every loaded node
	for _, n := range ix.Nodes() {
		if parent, ok := n.Path.Parent(); ok {
			assert.True(t, ix.Has(parent), "parent of %q", n.Path)
		}
	}
}

func TestEngine_LoadReportsParkedContent(t *testing.T) {
	root := t.TempDir()
	writeNode(t, root, "0", "Parent")
	writeNode(t, root, "0/4294967295/3", "Parked")

	ix, report, err := NewEngine(nil).Load(osfs.New(root, osfs.WithBoundOS()))
	require.NoError(t, err)

	parked := treepath.Of(0, treepath.Sentinel, 3)
	require.Len(t, report.StaleSentinels, 1)
	assert.True(t, report.StaleSentinels[0].Equal(parked))
	assert.True(t, ix.Has(parked))
	assert.Empty(t, ix.Children(treepath.Of(0)))
}

func TestEngine_LoadMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")
	_, _, err := NewEngine(nil).Load(osfs.New(root, osfs.WithBoundOS()))
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	ix := graph.NewIndex([]graph.Node{
		graph.NewNode(treepath.MustParseHuman("A"), "Alpha\n\nbody\n\nmore"),
		graph.NewNode(treepath.MustParseHuman("AC"), "Gamma"),
	})

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	n, err := Export(dbPath, ix.Nodes())
	require.NoError(t, err)
	assert.Equal(t, ix.Len(), n)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var title, parent string
	var hasMore bool
	err = db.QueryRow(`SELECT title, parent, has_more FROM nodes WHERE path = ?`, "A").Scan(&title, &parent, &hasMore)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", title)
	assert.Equal(t, "", parent)
	assert.True(t, hasMore)

	var synthesized int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM nodes WHERE synthesized = 1`).Scan(&synthesized))
	// root plus nothing else: AB has no descendants
	assert.Equal(t, 1, synthesized)

	var children int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM nodes WHERE parent = ?`, "A").Scan(&children))
	assert.Equal(t, 1, children)
}

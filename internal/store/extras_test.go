package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentic-research/florg/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCalendar(t *testing.T) {
	f := setup(t)
	f.put(t, "B", "Diary")

	n, err := f.s.CreateCalendar(f.ctx, hp("B"), 2024)
	require.NoError(t, err)
	assert.Equal(t, 12+366, n)

	assert.Equal(t, "Jan 2024", f.raw(t, "BA"))
	assert.Equal(t, "Dec 2024", f.raw(t, "BL"))
	assert.Equal(t, "2024-01-01 (Mon KW 01)", f.raw(t, "BAA"))
	assert.Equal(t, "2024-02-29 (Thu KW 09)", f.raw(t, "BB28"))
	assert.Equal(t, "2024-12-31 (Tue KW 01)", f.raw(t, "BL30"))
	assert.Len(t, f.s.ChildrenOf(hp("BB")), 29)

	assert.Equal(t, []string{"Added date notes below B"}, f.rec.Messages())

	_, err = f.s.CreateCalendar(f.ctx, hp("B"), 2025)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateCalendar_ConcurrentCallsFillOnce(t *testing.T) {
	f := setup(t)
	f.put(t, "B", "Diary")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.s.CreateCalendar(f.ctx, hp("B"), 2023+i)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrConflict)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one calendar may be written")
	assert.Len(t, f.s.ChildrenOf(hp("B")), 12)
	assert.Equal(t, []string{"Added date notes below B"}, f.rec.Messages())
}

func TestDateToPath(t *testing.T) {
	d := time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "CE", DateToPath(d).Human())
	d = time.Date(2023, time.October, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "J30", DateToPath(d).Human())
	d = time.Date(2023, time.March, 27, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "C26", DateToPath(d).Human(), "late days are numeric, not ZA..ZF")
}

func TestEditSession_Abort(t *testing.T) {
	f := setup(t)
	f.put(t, "A", "Parent")

	session, err := f.s.BeginEdit(f.ctx, hp("AB"))
	require.NoError(t, err)
	assert.FileExists(t, session.File)
	n, ok := f.s.Get(hp("AB"))
	require.True(t, ok)
	assert.True(t, n.IsMarker(), "the slot is reserved while editing")
	assert.Contains(t, session.Text, "B  Parent\n")

	changed, err := f.s.FinishEdit(f.ctx, hp("AB"), session.Text, true)
	require.NoError(t, err)
	assert.False(t, changed)

	_, ok = f.s.Get(hp("AB"))
	assert.False(t, ok)
	assert.NoFileExists(t, session.File)
	_, err = os.Stat(filepath.Join(f.root, "0", "1"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, f.rec.Messages())
}

func TestEditSession_Commit(t *testing.T) {
	f := setup(t)

	session, err := f.s.BeginEdit(f.ctx, hp("C"))
	require.NoError(t, err)
	changed, err := f.s.FinishEdit(f.ctx, hp("C"), session.Text+"New title\n\nBody text\n", true)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "New title\n\nBody text", f.raw(t, "C"))
	assert.Equal(t, []string{"Added node C 'New title'"}, f.rec.Messages())

	// reopening an existing node and saving it unchanged records nothing
	session, err = f.s.BeginEdit(f.ctx, hp("C"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(session.Text, "New title\n\nBody text"))
	changed, err = f.s.FinishEdit(f.ctx, hp("C"), session.Text, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "New title\n\nBody text", f.raw(t, "C"))
	assert.Len(t, f.rec.Messages(), 1)
}

func TestEditSession_PlaceholderWithChildrenStays(t *testing.T) {
	f := setup(t)
	session, err := f.s.BeginEdit(f.ctx, hp("D"))
	require.NoError(t, err)
	// something was created below while the editor was open
	f.put(t, "DA", "child")

	_, err = f.s.FinishEdit(f.ctx, hp("D"), session.Text, false)
	require.NoError(t, err)
	n, ok := f.s.Get(hp("D"))
	require.True(t, ok)
	assert.True(t, n.IsMarker())
}

func TestHistoryLists(t *testing.T) {
	f := setup(t)

	got, err := f.s.HistoryGet("nav")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, f.s.HistoryStore("nav", []string{"A", "B30/31", `quote"d`}))
	got, err = f.s.HistoryGet("nav")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B30/31", `quote"d`}, got)

	_, err = f.s.HistoryGet("../escape")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, f.s.HistoryStore("", nil), ErrInvalid)

	// lists never show up as nodes
	_, err = f.s.Reload()
	require.NoError(t, err)
	assert.Zero(t, f.s.Len())
}

func TestStoreSettings(t *testing.T) {
	f := setup(t)
	assert.Empty(t, f.s.Settings().Nav)

	require.NoError(t, f.s.StoreSettings(f.ctx, `nav = { inbox = "Z" }`))
	assert.Equal(t, "Z", f.s.Settings().Nav["inbox"])
	assert.Equal(t, []string{"Changed settings"}, f.rec.Messages())

	err := f.s.StoreSettings(f.ctx, `nav = { inbox = "lower" }`)
	require.ErrorIs(t, err, settings.ErrInvalid)

	data, err := os.ReadFile(filepath.Join(f.root, settings.FileName))
	require.NoError(t, err)
	assert.Equal(t, `nav = { inbox = "Z" }`, string(data), "invalid text must not overwrite")

	_, err = f.s.Reload()
	require.NoError(t, err)
	assert.Equal(t, "Z", f.s.Settings().Nav["inbox"])
}

func TestExport(t *testing.T) {
	f := setup(t)
	f.put(t, "A", "a")
	f.put(t, "AC", "ac")

	n, err := f.s.Export(filepath.Join(t.TempDir(), "out.db"))
	require.NoError(t, err)
	assert.Equal(t, f.s.Len(), n)
}

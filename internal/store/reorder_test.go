package store

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/agentic-research/florg/internal/treepath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) childRaws(t *testing.T, parent string) []string {
	t.Helper()
	var out []string
	for _, n := range f.s.ChildrenOf(hp(parent)) {
		out = append(out, n.Raw)
	}
	return out
}

func TestSwap_InverseRestoresOrder(t *testing.T) {
	f := setup(t)
	f.put(t, "A", "parent")
	f.put(t, "AA", "one")
	f.put(t, "AAA", "child of one")
	f.put(t, "AB", "two")
	f.put(t, "AC", "three")

	require.NoError(t, f.s.SwapWithNext(f.ctx, hp("AA")))
	assert.Equal(t, []string{"two", "one", "three"}, f.childRaws(t, "A"))
	assert.Equal(t, "child of one", f.raw(t, "ABA"), "subtree travels with its node")
	f.assertMatchesDisk(t)

	require.NoError(t, f.s.SwapWithPrevious(f.ctx, hp("AB")))
	assert.Equal(t, []string{"one", "two", "three"}, f.childRaws(t, "A"))
	assert.Equal(t, "child of one", f.raw(t, "AAA"))

	assert.Equal(t, []string{"Swapped AA with AB", "Swapped AB with AA"}, f.rec.Messages())
	_, err := os.Stat(filepath.Join(f.root, "0", strconv.FormatUint(uint64(treepath.Sentinel), 10)))
	assert.True(t, os.IsNotExist(err), "parking slot must be empty afterwards")
}

func TestSwap_Edges(t *testing.T) {
	f := setup(t)
	f.put(t, "AA", "first")
	f.put(t, "AC", "last")

	require.ErrorIs(t, f.s.SwapWithPrevious(f.ctx, hp("AA")), ErrConflict)
	require.ErrorIs(t, f.s.SwapWithNext(f.ctx, hp("AC")), ErrConflict)
	require.ErrorIs(t, f.s.SwapWithNext(f.ctx, hp("AB")), ErrNotFound)
	require.ErrorIs(t, f.s.SwapWithNext(f.ctx, treepath.Root()), ErrConflict)

	// gaps are skipped: the neighbour is the next existing sibling
	require.NoError(t, f.s.SwapWithNext(f.ctx, hp("AA")))
	assert.Equal(t, "last", f.raw(t, "AA"))
	assert.Equal(t, "first", f.raw(t, "AC"))
}

func TestScenario_SortChildrenNatural(t *testing.T) {
	f := setup(t)
	f.put(t, "A", "parent")
	f.put(t, "AA", "10")
	f.put(t, "AB", "2")
	f.put(t, "AC", "1")

	moved, err := f.s.SortChildren(f.ctx, hp("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Equal(t, []string{"1", "2", "10"}, f.childRaws(t, "A"))
	assert.Equal(t, []string{"Sorted children of A"}, f.rec.Messages())
	f.assertMatchesDisk(t)

	moved, err = f.s.SortChildren(f.ctx, hp("A"))
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Len(t, f.rec.Messages(), 1, "no commit when nothing moves")
}

func TestSortChildren_CycleWithSubtrees(t *testing.T) {
	f := setup(t)
	f.put(t, "BA", "charlie")
	f.put(t, "BAA", "charlie's child")
	f.put(t, "BB", "Alpha")
	f.put(t, "BC", "bravo")

	_, err := f.s.SortChildren(f.ctx, hp("B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "bravo", "charlie"}, f.childRaws(t, "B"))
	assert.Equal(t, "charlie's child", f.raw(t, "BCA"))
}

func TestCompactChildren(t *testing.T) {
	f := setup(t)
	f.put(t, "AB", "b")
	f.put(t, "AD", "d")
	f.put(t, "A30", "thirty")
	f.put(t, "A30A", "nested")

	moved, err := f.s.CompactChildren(f.ctx, hp("A"))
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	kids := f.s.ChildrenOf(hp("A"))
	require.Len(t, kids, 3)
	for i, want := range []string{"AA", "AB", "AC"} {
		assert.Equal(t, want, kids[i].Path.Human())
	}
	assert.Equal(t, []string{"b", "d", "thirty"}, f.childRaws(t, "A"))
	assert.Equal(t, "nested", f.raw(t, "ACA"))
	assert.Equal(t, []string{"Compacted children of A"}, f.rec.Messages())
	f.assertMatchesDisk(t)
}

func parkedDir(root string, parent treepath.Path, rest ...string) string {
	parts := []string{root, parent.Dir(), strconv.FormatUint(uint64(treepath.Sentinel), 10)}
	return filepath.Join(append(parts, rest...)...)
}

func TestRecoverSentinels_AfterInterruptedSwap(t *testing.T) {
	f := setup(t)
	f.put(t, "AA", "one")
	f.put(t, "AB", "two")

	// a swap died after parking its first node
	dir := parkedDir(f.root, hp("A"))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node.adoc"), []byte("parked"), 0o644))
	_, err := f.s.Reload()
	require.NoError(t, err)

	require.Len(t, f.s.StaleSentinels(), 1)
	require.ErrorIs(t, f.s.SwapWithNext(f.ctx, hp("AA")), ErrConflict)
	_, err = f.s.CompactChildren(f.ctx, hp("A"))
	require.NoError(t, err, "already compact: nothing to stage")

	moved, err := f.s.RecoverSentinels(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Equal(t, "parked", f.raw(t, "AC"))
	assert.Empty(t, f.s.StaleSentinels())
	assert.Equal(t, []string{"Recovered parked nodes"}, f.rec.Messages())

	require.NoError(t, f.s.SwapWithNext(f.ctx, hp("AA")))
	f.assertMatchesDisk(t)
}

func TestRecoverSentinels_AfterInterruptedRemap(t *testing.T) {
	f := setup(t)
	f.put(t, "B", "b")
	for _, k := range []string{"3", "7"} {
		dir := parkedDir(f.root, treepath.Root(), k)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "node.adoc"), []byte("parked "+k), 0o644))
	}
	_, err := f.s.Reload()
	require.NoError(t, err)
	require.Len(t, f.s.StaleSentinels(), 2)

	moved, err := f.s.RecoverSentinels(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Equal(t, "parked 3", f.raw(t, "A"))
	assert.Equal(t, "parked 7", f.raw(t, "C"))

	_, err = os.Stat(parkedDir(f.root, treepath.Root()))
	assert.True(t, os.IsNotExist(err))

	moved, err = f.s.RecoverSentinels(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Len(t, f.rec.Messages(), 1)
}

func TestNaturalCompare(t *testing.T) {
	ordered := []string{"", "1", "2", "02", "10", "a", "A2", "a10", "B", "item 9", "item 10", "zeta"}
	for i := 1; i < len(ordered); i++ {
		assert.Negative(t, NaturalCompare(ordered[i-1], ordered[i]), "%q < %q", ordered[i-1], ordered[i])
		assert.Positive(t, NaturalCompare(ordered[i], ordered[i-1]))
	}
	assert.Zero(t, NaturalCompare("same", "same"))
	assert.Negative(t, NaturalCompare("Apple", "apple"), "case only breaks ties")
}

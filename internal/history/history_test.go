package history

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entryAt(query, output string, minutes int) *Entry {
	return &Entry{
		Query:       query,
		Mode:        ModeReport,
		Breadth:     4,
		Depth:       2,
		Learnings:   []string{query + " learning"},
		VisitedURLs: []string{"https://example.com/" + query},
		Output:      output,
		CreatedAt:   base.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestSaveAndGet(t *testing.T) {
	store := setupTestDB(t)

	entry := &Entry{
		Query:         "solid state batteries",
		CombinedQuery: "User question:\nsolid state batteries",
		Mode:          ModeAnswer,
		Breadth:       3,
		Depth:         1,
		Learnings:     []string{"a", "b"},
		VisitedURLs:   []string{"https://a"},
		Output:        "42",
	}
	require.NoError(t, store.Save(entry))
	require.NotEmpty(t, entry.ID, "ID assigned on save")
	require.False(t, entry.CreatedAt.IsZero())

	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Query, got.Query)
	assert.Equal(t, entry.CombinedQuery, got.CombinedQuery)
	assert.Equal(t, ModeAnswer, got.Mode)
	assert.Equal(t, 3, got.Breadth)
	assert.Equal(t, 1, got.Depth)
	assert.Equal(t, []string{"a", "b"}, got.Learnings)
	assert.Equal(t, []string{"https://a"}, got.VisitedURLs)
	assert.Equal(t, "42", got.Output)
	assert.WithinDuration(t, entry.CreatedAt, got.CreatedAt, time.Second)
}

func TestSave_NilListsRoundTripEmpty(t *testing.T) {
	store := setupTestDB(t)

	entry := &Entry{Query: "q", Mode: ModeReport, Output: "o"}
	require.NoError(t, store.Save(entry))

	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Learnings)
	assert.Empty(t, got.Learnings)
	assert.Empty(t, got.VisitedURLs)
}

func TestGet_NotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, store.Save(entryAt("first", "r1", 0)))
	require.NoError(t, store.Save(entryAt("second", "r2", 1)))
	require.NoError(t, store.Save(entryAt("third", "r3", 2)))

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Query)
	assert.Equal(t, "first", all[2].Query)

	two, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "second", two[1].Query)
}

func TestSearch(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, store.Save(entryAt("lithium supply", "report on mines", 0)))
	require.NoError(t, store.Save(entryAt("rust vs go", "go wins on tooling", 1)))
	require.NoError(t, store.Save(entryAt("weather", "sunny", 2)))

	found, err := store.Search("go", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "rust vs go", found[0].Query)

	found, err = store.Search("mines", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "lithium supply", found[0].Query)

	found, err = store.Search("nothing-matches", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDeleteAndClear(t *testing.T) {
	store := setupTestDB(t)
	a := entryAt("a", "ra", 0)
	b := entryAt("b", "rb", 1)
	require.NoError(t, store.Save(a))
	require.NoError(t, store.Save(b))

	require.NoError(t, store.Delete(a.ID))
	_, err := store.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(a.ID), ErrNotFound)

	require.NoError(t, store.Clear())
	all, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	entry := entryAt("persisted", "out", 0)
	require.NoError(t, store.Save(entry))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Query)
}

func TestExport_OldestFirst(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, store.Save(entryAt("old", "o", 0)))
	require.NoError(t, store.Save(entryAt("new", "n", 5)))

	var buf bytes.Buffer
	n, err := Export(store, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var out []Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "old", out[0].Query)
	assert.Equal(t, "new", out[1].Query)
	assert.Contains(t, buf.String(), `"visited_urls"`)
}

func TestExport_EmptyStore(t *testing.T) {
	store := setupTestDB(t)

	var buf bytes.Buffer
	n, err := Export(store, &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestImport_SkipsDuplicates(t *testing.T) {
	src := setupTestDB(t)
	require.NoError(t, src.Save(entryAt("alpha", "ra", 0)))
	require.NoError(t, src.Save(entryAt("beta", "rb", 1)))

	var buf bytes.Buffer
	_, err := Export(src, &buf)
	require.NoError(t, err)
	exported := buf.Bytes()

	dst := setupTestDB(t)
	// same query and output under a different ID
	require.NoError(t, dst.Save(entryAt("alpha", "ra", 3)))

	added, err := Import(dst, bytes.NewReader(exported))
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = Import(dst, bytes.NewReader(exported))
	require.NoError(t, err)
	assert.Equal(t, 0, added, "second import adds nothing")

	all, err := dst.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImport_DedupWithinInput(t *testing.T) {
	dst := setupTestDB(t)
	input := `[
		{"query": "q", "output": "o"},
		{"query": "q", "output": "o"},
		{"id": "fixed-id", "query": "other", "output": "x", "mode": "answer"}
	]`

	added, err := Import(dst, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	got, err := dst.Get("fixed-id")
	require.NoError(t, err)
	assert.Equal(t, ModeAnswer, got.Mode)
}

func TestImport_InvalidJSON(t *testing.T) {
	dst := setupTestDB(t)

	_, err := Import(dst, strings.NewReader("{not json"))
	assert.Error(t, err)
}

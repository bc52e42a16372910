package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(source, key, text string) *core.Record {
	normalized := core.NormalizeText(text)
	return &core.Record{
		Id:            core.IDFromKey(source, key),
		Source:        source,
		NaturalKey:    key,
		Title:         "Title for " + key,
		URL:           key,
		Authors:       []string{"A. Author", "B. Author"},
		DatePublished: time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
		Text:          normalized,
		ContentHash:   core.ContentHash(text),
		Status:        core.StatusOK,
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	record := testRecord("blogs", "https://example.com/a", "Some body text. "+strings.Repeat("x", 100))
	require.NoError(t, store.UpsertRecord(ctx, record))

	got, err := store.GetRecord(ctx, record.Id)
	require.NoError(t, err)

	assert.Equal(t, record.Id, got.Id)
	assert.Equal(t, record.Source, got.Source)
	assert.Equal(t, record.NaturalKey, got.NaturalKey)
	assert.Equal(t, record.Authors, got.Authors)
	assert.Equal(t, record.Text, got.Text)
	assert.Equal(t, record.ContentHash, got.ContentHash)
	assert.Equal(t, core.StatusOK, got.Status)
	assert.True(t, record.DatePublished.Equal(got.DatePublished))
	assert.False(t, got.InsertedAt.IsZero())
}

func TestStore_GetRecord_NotFound(t *testing.T) {
	store := NewTestStore(t)

	_, err := store.GetRecord(context.Background(), core.ID(12345))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UpsertOverwrites(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	record := testRecord("blogs", "https://example.com/a", strings.Repeat("first version. ", 10))
	require.NoError(t, store.UpsertRecord(ctx, record))
	require.NoError(t, store.MarkIndexed(ctx, record.Id, record.ContentHash))

	updated := testRecord("blogs", "https://example.com/a", strings.Repeat("second version. ", 10))
	require.NoError(t, store.UpsertRecord(ctx, updated))

	got, err := store.GetRecord(ctx, record.Id)
	require.NoError(t, err)

	// same id, overwritten content, indexed hash untouched by upsert
	assert.Equal(t, record.Id, got.Id)
	assert.Equal(t, updated.ContentHash, got.ContentHash)
	assert.Equal(t, record.ContentHash, got.IndexedHash)
	assert.Equal(t, core.IndexStateStale, got.IndexState())

	ids, err := store.ListIDs(ctx, "blogs")
	require.NoError(t, err)
	assert.Len(t, ids, 1, "overwrite must never duplicate")
}

func TestStore_ListNaturalKeys(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("blogs", "k1", strings.Repeat("a", 100))))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("blogs", "k2", strings.Repeat("b", 100))))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("forum", "k3", strings.Repeat("c", 100))))

	keys, err := store.ListNaturalKeys(ctx, "blogs")
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "k1")
	assert.Contains(t, keys, "k2")
	assert.NotContains(t, keys, "k3")
}

func TestStore_DeleteRecord(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	record := testRecord("blogs", "k1", strings.Repeat("a", 100))
	require.NoError(t, store.UpsertRecord(ctx, record))
	require.NoError(t, store.DeleteRecord(ctx, record.Id))

	_, err := store.GetRecord(ctx, record.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.DeleteRecord(ctx, record.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DeleteSource(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecord(ctx, testRecord("blogs", "k1", strings.Repeat("a", 100))))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("blogs", "k2", strings.Repeat("b", 100))))
	require.NoError(t, store.UpsertRecord(ctx, testRecord("forum", "k3", strings.Repeat("c", 100))))

	removed, err := store.DeleteSource(ctx, "blogs")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	keys, err := store.ListNaturalKeys(ctx, "blogs")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = store.ListNaturalKeys(ctx, "forum")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestStore_ListIndexCandidates(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	fresh := testRecord("blogs", "fresh", strings.Repeat("fresh text. ", 10))
	stale := testRecord("blogs", "stale", strings.Repeat("stale text. ", 10))
	never := testRecord("blogs", "never", strings.Repeat("never text. ", 10))
	rejected := testRecord("blogs", "rejected", strings.Repeat("rejected text. ", 10))
	rejected.Status = core.StatusRejected
	rejected.RejectReason = "missing fields"
	other := testRecord("forum", "other", strings.Repeat("other text. ", 10))

	for _, r := range []*core.Record{fresh, stale, never, rejected, other} {
		require.NoError(t, store.UpsertRecord(ctx, r))
	}
	require.NoError(t, store.MarkIndexed(ctx, fresh.Id, fresh.ContentHash))
	require.NoError(t, store.MarkIndexed(ctx, stale.Id, "an-older-hash"))

	candidates, err := store.ListIndexCandidates(ctx, "blogs", false)
	require.NoError(t, err)

	got := make([]string, 0, len(candidates))
	for _, c := range candidates {
		got = append(got, c.NaturalKey)
	}
	assert.ElementsMatch(t, []string{"stale", "never"}, got, "rejected and fresh records must be excluded")

	// force widens to all accepted records in scope
	candidates, err = store.ListIndexCandidates(ctx, "blogs", true)
	require.NoError(t, err)
	got = got[:0]
	for _, c := range candidates {
		got = append(got, c.NaturalKey)
	}
	assert.ElementsMatch(t, []string{"fresh", "stale", "never"}, got)

	// empty source widens to every source
	candidates, err = store.ListIndexCandidates(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestStore_MarkIndexed(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	record := testRecord("blogs", "k1", strings.Repeat("a", 100))
	require.NoError(t, store.UpsertRecord(ctx, record))

	require.NoError(t, store.MarkIndexed(ctx, record.Id, record.ContentHash))

	got, err := store.GetRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.IndexStateIndexed, got.IndexState())

	err = store.MarkIndexed(ctx, core.ID(99999), "hash")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListAcceptedIDs(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	ok := testRecord("blogs", "ok", strings.Repeat("a", 100))
	rejected := testRecord("blogs", "rejected", strings.Repeat("b", 100))
	rejected.Status = core.StatusRejected

	require.NoError(t, store.UpsertRecord(ctx, ok))
	require.NoError(t, store.UpsertRecord(ctx, rejected))

	ids, err := store.ListAcceptedIDs(ctx, "blogs")
	require.NoError(t, err)

	assert.Len(t, ids, 1)
	assert.Contains(t, ids, ok.Id)
}

func TestStore_GetContentHash(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	record := testRecord("blogs", "k1", strings.Repeat("a", 100))
	require.NoError(t, store.UpsertRecord(ctx, record))

	hash, err := store.GetContentHash(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, record.ContentHash, hash)

	_, err = store.GetContentHash(ctx, core.ID(404))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ClosedOperationsFail(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	record := testRecord("blogs", "k1", strings.Repeat("a", 100))
	require.NoError(t, store.UpsertRecord(ctx, record))
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.UpsertRecord(ctx, record), storage.ErrStorageClosed)

	_, err := store.GetRecord(ctx, record.Id)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = store.ListNaturalKeys(ctx, "blogs")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = store.ListIndexCandidates(ctx, "blogs", false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	assert.ErrorIs(t, store.MarkIndexed(ctx, record.Id, record.ContentHash), storage.ErrStorageClosed)

	// Closing twice is a no-op.
	assert.NoError(t, store.Close())
}

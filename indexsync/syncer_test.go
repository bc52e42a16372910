package indexsync

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/ai/mock"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/sqlite"
	"github.com/poiesic/corpus/vectorindex"
	vxbadger "github.com/poiesic/corpus/vectorindex/badger"
)

var longText = strings.Repeat("The quick brown fox jumps over the lazy dog. ", 5)

func testConfig() *Config {
	config := DefaultConfig()
	config.Workers = 2
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	config.MaxChunkLen = 100
	config.ChunkOverlap = 20
	return config
}

func newTestSyncer(t *testing.T, embedder *mock.MockEmbedder) (*Syncer, storage.RecordStore, vectorindex.Index) {
	t.Helper()

	store := sqlite.NewTestStore(t)

	index, err := vxbadger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	syncer, err := NewSyncer(store, embedder, index, testConfig(), io.Discard)
	require.NoError(t, err)
	return syncer, store, index
}

func storeRecord(t *testing.T, store storage.RecordStore, naturalKey string, status core.Status) *core.Record {
	t.Helper()

	now := time.Now().UTC()
	record := &core.Record{
		Id:          core.IDFromKey("blog", naturalKey),
		Source:      "blog",
		NaturalKey:  naturalKey,
		Title:       "Document " + naturalKey,
		URL:         "https://example.com/" + naturalKey,
		Authors:     []string{"Test Author"},
		Text:        longText + naturalKey,
		ContentHash: core.ContentHash(longText + naturalKey),
		Status:      status,
		InsertedAt:  now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.UpsertRecord(context.Background(), record))
	return record
}

func TestNewSyncerValidation(t *testing.T) {
	store := sqlite.NewTestStore(t)
	index, err := vxbadger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	embedder := mock.NewMockEmbedder()

	_, err = NewSyncer(nil, embedder, index, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewSyncer(store, nil, index, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewSyncer(store, embedder, nil, nil, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)
}

func TestUpdateIndexesCandidates(t *testing.T) {
	syncer, store, index := newTestSyncer(t, mock.NewMockEmbedder())
	ctx := context.Background()

	record := storeRecord(t, store, "doc-1", core.StatusOK)

	result, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 0, result.Failed)

	found, err := index.HasRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.True(t, found)

	stored, err := store.GetRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.IndexStateIndexed, stored.IndexState())
}

func TestUpdateIsIncremental(t *testing.T) {
	syncer, store, _ := newTestSyncer(t, mock.NewMockEmbedder())
	ctx := context.Background()

	storeRecord(t, store, "doc-1", core.StatusOK)

	_, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)

	// Nothing changed: the second pass finds no candidates.
	result, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)

	// Force widens scope to every accepted record.
	result, err = syncer.Update(ctx, "blog", true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Indexed)
}

func TestUpdateNeverIndexesRejected(t *testing.T) {
	syncer, store, index := newTestSyncer(t, mock.NewMockEmbedder())
	ctx := context.Background()

	record := storeRecord(t, store, "doc-1", core.StatusRejected)

	result, err := syncer.Update(ctx, "blog", true)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)

	found, err := index.HasRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateFailureLeavesRecordStale(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("provider unavailable")
	}
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("provider unavailable")
	}

	syncer, store, index := newTestSyncer(t, embedder)
	ctx := context.Background()

	record := storeRecord(t, store, "doc-1", core.StatusOK)

	result, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Indexed)
	assert.Equal(t, 1, result.Failed)

	// No partial vectors, and the record is retried on the next pass.
	found, err := index.HasRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := store.GetRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.IndexStateNotIndexed, stored.IndexState())

	candidates, err := store.ListIndexCandidates(ctx, "blog", false)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestUpdateDegradesToPerChunkEmbedding(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("batch endpoint down")
	}

	syncer, store, index := newTestSyncer(t, embedder)
	ctx := context.Background()

	record := storeRecord(t, store, "doc-1", core.StatusOK)

	result, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)

	found, err := index.HasRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestUpdateReplacesChunksOnContentChange(t *testing.T) {
	syncer, store, index := newTestSyncer(t, mock.NewMockEmbedder())
	ctx := context.Background()

	record := storeRecord(t, store, "doc-1", core.StatusOK)
	_, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)

	// Shrink the document to a single chunk: the re-index must not
	// leave old chunks behind.
	record.Text = "Short revision of the document."
	record.ContentHash = core.ContentHash(record.Text)
	require.NoError(t, store.UpsertRecord(ctx, record))

	result, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)

	query, err := mock.NewMockEmbedder().EmbedText(ctx, "query")
	require.NoError(t, err)
	matches, err := index.Search(ctx, query, 100)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

// flakyIndex fails DeleteRecord for one record id and delegates
// everything else.
type flakyIndex struct {
	vectorindex.Index
	failID core.ID
}

func (f *flakyIndex) DeleteRecord(ctx context.Context, id core.ID) error {
	if id == f.failID {
		return errors.New("index unavailable")
	}
	return f.Index.DeleteRecord(ctx, id)
}

func TestReconcileContinuesPastDeleteFailures(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	syncer, store, index := newTestSyncer(t, embedder)
	ctx := context.Background()

	stuck := storeRecord(t, store, "doc-1", core.StatusOK)
	gone := storeRecord(t, store, "doc-2", core.StatusOK)

	_, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)

	stuck.Status = core.StatusRejected
	gone.Status = core.StatusRejected
	require.NoError(t, store.UpsertRecord(ctx, stuck))
	require.NoError(t, store.UpsertRecord(ctx, gone))

	flaky := &flakyIndex{Index: index, failID: stuck.Id}
	flakySyncer, err := NewSyncer(store, embedder, flaky, testConfig(), io.Discard)
	require.NoError(t, err)

	// One failing delete does not block the other removal.
	removed, err := flakySyncer.Reconcile(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, removed)

	found, err := index.HasRecord(ctx, gone.Id)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = index.HasRecord(ctx, stuck.Id)
	require.NoError(t, err)
	assert.True(t, found)

	// The next pass against a healthy index clears the leftover.
	removed, err = syncer.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestReconcileRemovesVectorsNotRecords(t *testing.T) {
	syncer, store, index := newTestSyncer(t, mock.NewMockEmbedder())
	ctx := context.Background()

	keep := storeRecord(t, store, "doc-1", core.StatusOK)
	drop := storeRecord(t, store, "doc-2", core.StatusOK)

	_, err := syncer.Update(ctx, "blog", false)
	require.NoError(t, err)

	// The upstream rejected one document after it was indexed.
	drop.Status = core.StatusRejected
	drop.RejectReason = "removed upstream"
	require.NoError(t, store.UpsertRecord(ctx, drop))

	removed, err := syncer.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	found, err := index.HasRecord(ctx, drop.Id)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = index.HasRecord(ctx, keep.Id)
	require.NoError(t, err)
	assert.True(t, found)

	// The store record survives reconciliation; only the vectors go.
	_, err = store.GetRecord(ctx, drop.Id)
	assert.NoError(t, err)

	// A second pass is a no-op.
	removed, err = syncer.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

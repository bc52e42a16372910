package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/vectorindex"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := openIndex("", true)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func testChunks(id core.ID, vectors ...[]float32) []vectorindex.Chunk {
	chunks := make([]vectorindex.Chunk, len(vectors))
	for i, v := range vectors {
		chunks[i] = vectorindex.Chunk{
			RecordID: id,
			Ordinal:  i,
			Text:     "chunk text",
			Title:    "Test Document",
			URL:      "https://example.com/doc",
			Source:   "blog",
			Vector:   v,
		}
	}
	return chunks
}

func TestReplaceChunksAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	err := ix.ReplaceChunks(ctx, 1, "hash-a", testChunks(1, []float32{1, 0, 0}))
	require.NoError(t, err)
	err = ix.ReplaceChunks(ctx, 2, "hash-b", testChunks(2, []float32{0, 1, 0}))
	require.NoError(t, err)

	matches, err := ix.Search(ctx, []float32{0.9, 0.1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, core.ID(1), matches[0].RecordID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "Test Document", matches[0].Title)
	assert.Equal(t, "https://example.com/doc", matches[0].URL)
	assert.Equal(t, "blog", matches[0].Source)
}

func TestSearchLimit(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	err := ix.ReplaceChunks(ctx, 1, "hash", testChunks(1,
		[]float32{1, 0}, []float32{0.9, 0.1}, []float32{0.8, 0.2}))
	require.NoError(t, err)

	matches, err := ix.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Ordinal)
}

func TestReplaceChunksShrink(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	err := ix.ReplaceChunks(ctx, 7, "hash-v1", testChunks(7,
		[]float32{1, 0}, []float32{1, 0}, []float32{1, 0}))
	require.NoError(t, err)

	// Re-index with fewer chunks; the old trailing chunks must not
	// survive the replacement.
	err = ix.ReplaceChunks(ctx, 7, "hash-v2", testChunks(7, []float32{1, 0}))
	require.NoError(t, err)

	matches, err := ix.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Ordinal)
}

func TestReplaceChunksEmptyDeletes(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.ReplaceChunks(ctx, 3, "hash", testChunks(3, []float32{1})))
	require.NoError(t, ix.ReplaceChunks(ctx, 3, "hash", nil))

	found, err := ix.HasRecord(ctx, 3)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteRecord(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.ReplaceChunks(ctx, 5, "hash", testChunks(5, []float32{1}, []float32{1})))

	require.NoError(t, ix.DeleteRecord(ctx, 5))

	found, err := ix.HasRecord(ctx, 5)
	require.NoError(t, err)
	assert.False(t, found)

	matches, err := ix.Search(ctx, []float32{1}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Deleting an absent record is a no-op.
	require.NoError(t, ix.DeleteRecord(ctx, 5))
}

func TestHasRecord(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	found, err := ix.HasRecord(ctx, 9)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ix.ReplaceChunks(ctx, 9, "hash", testChunks(9, []float32{1})))

	found, err = ix.HasRecord(ctx, 9)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestListRecordIDs(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	ids, err := ix.ListRecordIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, ix.ReplaceChunks(ctx, 1, "h1", testChunks(1, []float32{1})))
	require.NoError(t, ix.ReplaceChunks(ctx, 2, "h2", testChunks(2, []float32{1})))

	ids, err = ix.ListRecordIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{1, 2}, ids)
}

func TestChunkEntrySerializationRoundTrip(t *testing.T) {
	entry := chunkEntry{
		Text:   "some chunk text with unicode 日本語",
		Title:  "A Title",
		URL:    "https://example.com",
		Source: "arxiv",
		Vector: []float32{0.1, -0.5, 3.25},
	}

	decoded, err := unmarshalChunkEntry(marshalChunkEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestRecordMetaSerializationRoundTrip(t *testing.T) {
	meta := recordMeta{ContentHash: "abc123", ChunkCount: 42}

	decoded, err := unmarshalRecordMeta(marshalRecordMeta(meta))
	require.NoError(t, err)
	assert.Equal(t, meta, decoded)
}

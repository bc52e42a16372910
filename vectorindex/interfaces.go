package vectorindex

import (
	"context"

	"github.com/poiesic/corpus/core"
)

// Chunk is one bounded-length slice of a record's text together with
// its embedding vector and retrieval metadata. Chunks are tagged with
// the parent record ID and an ordinal giving their position in the
// document.
type Chunk struct {
	RecordID core.ID
	Ordinal  int
	Text     string
	Vector   []float32

	// Retrieval metadata carried alongside the vector.
	Title  string
	URL    string
	Source string
}

// Match is a single chunk hit from a similarity search.
type Match struct {
	RecordID core.ID
	Ordinal  int
	Score    float32
	Text     string
	Title    string
	URL      string
	Source   string
}

// Index is the narrow interface the synchronization engine needs from
// a vector index. Implementations must be thread-safe; concurrent
// callers never operate on the same record ID.
type Index interface {
	// ReplaceChunks atomically replaces every chunk previously indexed
	// for the record with the given set, so stale chunk counts never
	// linger when a document shrinks. contentHash records which version
	// of the text the chunks embed.
	ReplaceChunks(ctx context.Context, id core.ID, contentHash string, chunks []Chunk) error

	// DeleteRecord removes every chunk for the record. Deleting an
	// absent record is a no-op.
	DeleteRecord(ctx context.Context, id core.ID) error

	// HasRecord reports whether any chunks are indexed for the record.
	HasRecord(ctx context.Context, id core.ID) (bool, error)

	// ListRecordIDs returns the IDs of every record present in the
	// index. The reconciliation pass compares this against the store.
	ListRecordIDs(ctx context.Context) ([]core.ID, error)

	// Search returns the chunks most similar to the query vector,
	// ordered by similarity score (highest first), up to limit results.
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)

	// Close releases index resources.
	Close() error
}

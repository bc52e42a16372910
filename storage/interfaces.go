package storage

import (
	"context"

	"github.com/poiesic/corpus/core"
)

// RecordStore provides durable persistence for normalized records,
// keyed by their deterministic ID. Implementations must be thread-safe
// and support concurrent upserts; last-writer-wins is acceptable since
// IDs are natural-key-derived and writes are idempotent.
type RecordStore interface {
	// UpsertRecord inserts the record or overwrites the prior version
	// with the same ID. InsertedAt is preserved on update and UpdatedAt
	// is refreshed. IndexedHash is never touched by an upsert; it is
	// owned by MarkIndexed.
	UpsertRecord(ctx context.Context, record *core.Record) error

	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ID) (*core.Record, error)

	// GetContentHash retrieves the stored content hash for an ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetContentHash(ctx context.Context, id core.ID) (string, error)

	// ListNaturalKeys returns the set of natural keys already persisted
	// for a source. The processing engine uses it as the dedup frontier.
	ListNaturalKeys(ctx context.Context, source string) (map[string]struct{}, error)

	// ListIDs returns every record ID persisted for a source.
	ListIDs(ctx context.Context, source string) ([]core.ID, error)

	// ListAcceptedIDs returns the set of IDs with StatusOK. An empty
	// source means all sources. The index engine reconciles the vector
	// index against this set.
	ListAcceptedIDs(ctx context.Context, source string) (map[core.ID]struct{}, error)

	// DeleteRecord removes a record by ID. Deletion is an explicit
	// operation; the processing engine itself never deletes.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteRecord(ctx context.Context, id core.ID) error

	// DeleteSource removes every record for a source and returns the
	// number removed. Used by rebuild mode before a full re-fetch.
	DeleteSource(ctx context.Context, source string) (int64, error)

	// ListIndexCandidates streams the accepted records whose index
	// representation is stale or missing. An empty source means all
	// sources. With force, every accepted record for the scope is
	// returned regardless of staleness.
	ListIndexCandidates(ctx context.Context, source string, force bool) ([]*core.Record, error)

	// MarkIndexed records the content hash that was successfully
	// embedded for the ID, making the record's derived index state
	// IndexStateIndexed until the text changes again.
	// Returns ErrNotFound if the record doesn't exist.
	MarkIndexed(ctx context.Context, id core.ID, contentHash string) error

	// Close closes the storage backend and releases resources.
	Close() error
}

package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/vectorindex"
)

// Index is a BadgerDB-backed implementation of vectorindex.Index.
// Chunks are stored under binary composite keys so that every chunk of
// a record sits under one key prefix, and a marker key per record
// makes presence checks and reconciliation scans cheap.
type Index struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ vectorindex.Index = (*Index)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// openIndex opens a BadgerDB-backed index at the specified path.
// Creates the directory if it doesn't exist.
func openIndex(filePath string, inMemory bool) (*Index, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Index{
		db:     db,
		logger: slog.Default(),
	}, nil
}

// Open opens a BadgerDB-backed vector index at the specified path.
func Open(filePath string) (vectorindex.Index, error) {
	return openIndex(filePath, false)
}

// OpenInMemory opens an in-memory vector index, used in tests.
func OpenInMemory() (vectorindex.Index, error) {
	return openIndex("", true)
}

// Close closes the underlying BadgerDB database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// withTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (ix *Index) withTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if ix.db.IsClosed() {
		return vectorindex.ErrIndexClosed
	}
	tx := ix.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// ReplaceChunks atomically swaps the indexed chunks for a record.
// Old chunks are removed and the new set written in one transaction,
// so a shrinking document never leaves trailing chunks behind.
func (ix *Index) ReplaceChunks(ctx context.Context, id core.ID, contentHash string, chunks []vectorindex.Chunk) error {
	if len(chunks) == 0 {
		return ix.DeleteRecord(ctx, id)
	}

	return ix.withTx(func(tx *badger.Txn) error {
		if err := deleteRecordKeys(tx, id); err != nil {
			return err
		}

		for _, chunk := range chunks {
			entry := chunkEntry{
				Text:   chunk.Text,
				Title:  chunk.Title,
				URL:    chunk.URL,
				Source: chunk.Source,
				Vector: chunk.Vector,
			}
			if err := tx.Set(makeChunkKey(id, chunk.Ordinal), marshalChunkEntry(entry)); err != nil {
				return fmt.Errorf("failed to write chunk %d: %w", chunk.Ordinal, err)
			}
		}

		meta := recordMeta{ContentHash: contentHash, ChunkCount: len(chunks)}
		if err := tx.Set(makeRecordKey(id), marshalRecordMeta(meta)); err != nil {
			return fmt.Errorf("failed to write record marker: %w", err)
		}

		return tx.Commit()
	}, true)
}

// DeleteRecord removes every chunk and the marker for a record.
// Deleting a record that isn't indexed is a no-op.
func (ix *Index) DeleteRecord(ctx context.Context, id core.ID) error {
	return ix.withTx(func(tx *badger.Txn) error {
		if err := deleteRecordKeys(tx, id); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// deleteRecordKeys removes the marker and all chunk keys for a record
// within the given transaction.
func deleteRecordKeys(tx *badger.Txn, id core.ID) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChunkPrefix(id)
	opts.PrefetchValues = false

	// Collect first, then delete; deleting under an open iterator is
	// not safe in badger.
	var keys [][]byte
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}

	if err := tx.Delete(makeRecordKey(id)); err != nil {
		return err
	}
	return nil
}

// HasRecord reports whether the record has any indexed chunks.
func (ix *Index) HasRecord(ctx context.Context, id core.ID) (bool, error) {
	found := false
	err := ix.withTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeRecordKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// ListRecordIDs returns the ID of every record present in the index.
func (ix *Index) ListRecordIDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := ix.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix + ":")
		opts.PrefetchValues = false

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, ok := recordIDFromKey(iter.Item().Key())
			if !ok {
				continue
			}
			ids = append(ids, id)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Search scans every chunk and returns the closest matches by dot
// product, highest score first. Vectors are expected to be normalized,
// so the dot product equals cosine similarity.
func (ix *Index) Search(ctx context.Context, vector []float32, limit int) ([]vectorindex.Match, error) {
	var matches []vectorindex.Match

	err := ix.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkKeyPrefix + ":")

		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			id, ordinal, ok := chunkKeyParts(item.Key())
			if !ok {
				continue
			}

			var entry chunkEntry
			err := item.Value(func(val []byte) error {
				var err error
				entry, err = unmarshalChunkEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(entry.Vector) == 0 {
				continue
			}

			matches = append(matches, vectorindex.Match{
				RecordID: id,
				Ordinal:  ordinal,
				Score:    dotProduct(vector, entry.Vector),
				Text:     entry.Text,
				Title:    entry.Title,
				URL:      entry.URL,
				Source:   entry.Source,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(matches, func(a, b vectorindex.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

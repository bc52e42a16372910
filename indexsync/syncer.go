// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package indexsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/chunk"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/vectorindex"
)

// Config holds configuration for index synchronization.
type Config struct {
	// BatchSize is the number of chunks sent per embedding request
	BatchSize int

	// Workers is the number of records processed concurrently
	Workers int

	// MaxRetries is the maximum number of attempts for embedding requests
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxChunkLen overrides the chunk length in runes; zero keeps the default
	MaxChunkLen int

	// ChunkOverlap overrides the overlap between chunks in runes; zero keeps the default
	ChunkOverlap int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      64,
		Workers:        4,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		ReportInterval: 100,
	}
}

// Result summarizes one index update pass.
type Result struct {
	Candidates int // records that needed (re-)indexing
	Indexed    int // records embedded and marked indexed
	Failed     int // records left stale for a future pass
}

// Syncer keeps the vector index consistent with the record store.
// Candidate records are chunked, embedded and upserted concurrently;
// a record's chunks are always replaced as one unit, so the index
// never holds a partial version of a document.
type Syncer struct {
	store    storage.RecordStore
	embedder ai.Embedder
	index    vectorindex.Index
	splitter *chunk.Splitter
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewSyncer creates a new index synchronizer.
// progress: where to write progress output (typically os.Stderr)
func NewSyncer(store storage.RecordStore, embedder ai.Embedder, index vectorindex.Index, config *Config, progress io.Writer) (*Syncer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	var splitterOpts []chunk.Option
	if config.MaxChunkLen > 0 {
		splitterOpts = append(splitterOpts, chunk.WithMaxChunkLen(config.MaxChunkLen))
	}
	if config.ChunkOverlap > 0 {
		splitterOpts = append(splitterOpts, chunk.WithOverlap(config.ChunkOverlap))
	}

	return &Syncer{
		store:    store,
		embedder: embedder,
		index:    index,
		splitter: chunk.New(splitterOpts...),
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}, nil
}

// Update brings the index up to date for one source, or for all
// sources when source is empty. By default only records whose content
// changed since their last embedding (or that were never embedded) are
// processed; force widens the scope to every accepted record, used
// after an embedding-model change.
//
// A record's failure never blocks the others: it is logged, counted,
// and left stale so the next pass retries it.
func (s *Syncer) Update(ctx context.Context, source string, force bool) (*Result, error) {
	candidates, err := s.store.ListIndexCandidates(ctx, source, force)
	if err != nil {
		return nil, fmt.Errorf("failed to list index candidates: %w", err)
	}

	result := &Result{Candidates: len(candidates)}
	if len(candidates) == 0 {
		fmt.Fprintf(s.progress, "Index is up to date (0 candidates)\n")
		return result, nil
	}

	fmt.Fprintf(s.progress, "Updating index for %d records (workers: %d)\n",
		len(candidates), s.config.Workers)

	tracker := NewProgressTracker(s.progress, len(candidates), s.config.ReportInterval)

	pool, err := ants.NewPool(s.config.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		indexed atomic.Int64
		failed  atomic.Int64
	)

	for _, record := range candidates {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			if err := s.syncRecord(ctx, record); err != nil {
				s.logger.Error("failed to index record",
					"id", record.Id, "source", record.Source, "err", err)
				failed.Add(1)
			} else {
				indexed.Add(1)
			}
			tracker.Increment(1)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			s.logger.Error("failed to submit record", "id", record.Id, "err", submitErr)
		}
	}
	wg.Wait()
	tracker.Finish()

	result.Indexed = int(indexed.Load())
	result.Failed = int(failed.Load())

	elapsed := tracker.Elapsed()
	fmt.Fprintf(s.progress, "Index update complete. Indexed %d of %d records in %v (%d failed)\n",
		result.Indexed, result.Candidates, elapsed.Round(time.Second), result.Failed)

	return result, nil
}

// syncRecord chunks, embeds and upserts a single record. The record is
// marked indexed only after its chunks have been replaced in the
// index; any failure leaves both the index entry and the stored state
// untouched so a later pass retries from scratch.
func (s *Syncer) syncRecord(ctx context.Context, record *core.Record) error {
	pieces := s.splitter.Split(record.Text)
	if len(pieces) == 0 {
		// Nothing embeddable; drop whatever an earlier version left behind.
		if err := s.index.DeleteRecord(ctx, record.Id); err != nil {
			return err
		}
		return s.store.MarkIndexed(ctx, record.Id, record.ContentHash)
	}

	signature := chunkSignature(record.Title, record.Authors)
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = signedText(signature, piece)
	}

	vectors, err := s.embedTexts(ctx, texts)
	if err != nil {
		return err
	}

	chunks := make([]vectorindex.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = vectorindex.Chunk{
			RecordID: record.Id,
			Ordinal:  i,
			Text:     piece,
			Vector:   NormalizeVector(vectors[i]),
			Title:    record.Title,
			URL:      record.URL,
			Source:   record.Source,
		}
	}

	if err := s.index.ReplaceChunks(ctx, record.Id, record.ContentHash, chunks); err != nil {
		return fmt.Errorf("failed to replace chunks: %w", err)
	}

	if err := s.store.MarkIndexed(ctx, record.Id, record.ContentHash); err != nil {
		return fmt.Errorf("failed to mark record indexed: %w", err)
	}

	return nil
}

// embedTexts embeds the texts in provider-sized batches. A batch that
// keeps failing degrades to per-chunk requests before the record is
// given up on.
func (s *Syncer) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, len(texts))
		batch := texts[start:end]

		var embeddings [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var err error
			embeddings, err = s.embedder.EmbedTexts(ctx, batch)
			if err != nil {
				return err
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
			}
			return nil
		}, s.config.MaxRetries, s.config.RetryDelay)

		if err != nil {
			embeddings, err = s.embedOneByOne(ctx, batch)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", s.config.MaxRetries, err)
			}
		}

		vectors = append(vectors, embeddings...)
	}

	return vectors, nil
}

// embedOneByOne is the degraded path after a batch-level failure.
func (s *Syncer) embedOneByOne(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		err := RetryWithBackoff(ctx, func() error {
			var err error
			vectors[i], err = s.embedder.EmbedText(ctx, text)
			return err
		}, s.config.MaxRetries, s.config.RetryDelay)
		if err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Reconcile removes index entries whose records are gone from the
// store or have been rejected since they were indexed. It runs across
// all sources: an index entry whose record was deleted outright can no
// longer be attributed to any source. Returns the number of records
// removed from the index.
func (s *Syncer) Reconcile(ctx context.Context) (int, error) {
	accepted, err := s.store.ListAcceptedIDs(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list accepted records: %w", err)
	}

	ids, err := s.index.ListRecordIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed records: %w", err)
	}

	// One record's delete failure never blocks the rest; failures are
	// counted and retried on the next pass.
	removed, failed := 0, 0
	for _, id := range ids {
		if _, ok := accepted[id]; ok {
			continue
		}
		if err := s.index.DeleteRecord(ctx, id); err != nil {
			s.logger.Error("failed to remove record from index", "id", id, "err", err)
			failed++
			continue
		}
		s.logger.Debug("removed record from index", "id", id)
		removed++
	}

	if removed > 0 {
		fmt.Fprintf(s.progress, "Reconciliation removed %d records from the index\n", removed)
	}
	if failed > 0 {
		return removed, fmt.Errorf("failed to remove %d records from the index", failed)
	}
	return removed, nil
}

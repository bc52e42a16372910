package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/poiesic/corpus/connector"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Engine drives connectors through setup, enumeration, dedup and
// persistence. One connector's item stream is processed strictly
// sequentially; separate connectors run concurrently with no shared
// mutable state beyond the record store.
type Engine struct {
	registry    *connector.Registry
	store       storage.RecordStore
	concurrency int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithConcurrency sets how many connectors RunAll drives at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
		return nil
	}
}

// NewEngine creates a new processing engine over the given registry
// and record store.
func NewEngine(registry *connector.Registry, store storage.RecordStore, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	concurrency := runtime.NumCPU() / 2
	if concurrency < 1 {
		concurrency = 1
	}

	e := &Engine{
		registry:    registry,
		store:       store,
		concurrency: concurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Result summarizes one connector run.
type Result struct {
	Source  string
	Seen    int // items enumerated
	Written int // records inserted or updated
	Skipped int // items silently skipped or unchanged since last run
	Failed  int // item-level faults
}

// Run drives the named connector to completion. With rebuild, every
// record previously persisted for the source is removed first, forcing
// a full re-fetch; used after extraction-logic changes.
func (e *Engine) Run(ctx context.Context, source string, rebuild bool) (*Result, error) {
	conn, err := e.registry.Get(source)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, conn, rebuild)
}

// RunAll drives every registered connector, up to the configured
// concurrency. A failing source never aborts the others; the returned
// error joins the per-source failures, and results are returned for
// the sources that completed.
func (e *Engine) RunAll(ctx context.Context, rebuild bool) ([]*Result, error) {
	conns := e.registry.All()
	results := make([]*Result, len(conns))
	errs := make([]error, len(conns))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, conn := range conns {
		g.Go(func() error {
			result, err := e.run(ctx, conn, rebuild)
			if err != nil {
				name := conn.Descriptor().Name
				e.logger.Error("source run failed", "source", name, "err", err)
				errs[i] = fmt.Errorf("source %s: %w", name, err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	g.Wait()

	completed := make([]*Result, 0, len(results))
	for _, result := range results {
		if result != nil {
			completed = append(completed, result)
		}
	}
	return completed, errors.Join(errs...)
}

func (e *Engine) run(ctx context.Context, conn connector.Connector, rebuild bool) (*Result, error) {
	desc := conn.Descriptor()
	logger := e.logger.With("source", desc.Name)

	if rebuild {
		removed, err := e.store.DeleteSource(ctx, desc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to clear source for rebuild: %w", err)
		}
		logger.Info("cleared source for rebuild", "removed", removed)
	}

	if err := conn.Setup(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	// The dedup frontier: natural keys already persisted for this
	// source. Frontier items are still processed so that content
	// changes are detected, but an unchanged hash skips the write.
	frontier, err := e.store.ListNaturalKeys(ctx, desc.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup frontier: %w", err)
	}

	var limiter *rate.Limiter
	if desc.Cooldown > 0 {
		limiter = rate.NewLimiter(rate.Every(desc.Cooldown), 1)
	}

	result := &Result{Source: desc.Name}
	for item, itemErr := range conn.Items(ctx) {
		if itemErr != nil {
			logger.Error("item enumeration failed", "err", itemErr)
			result.Failed++
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				// The limiter wraps an unfinishable wait in its own
				// error text; surface the context error so callers can
				// match cancellation with errors.Is.
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				return result, context.DeadlineExceeded
			}
		}

		result.Seen++
		e.processItem(ctx, conn, desc, item, frontier, result, logger)
	}

	logger.Info("fetch complete",
		"seen", result.Seen,
		"written", result.Written,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

// processItem handles a single enumerated item. Faults are logged and
// counted, never propagated; a failing item must not abort the batch.
func (e *Engine) processItem(
	ctx context.Context,
	conn connector.Connector,
	desc connector.Descriptor,
	item connector.Item,
	frontier map[string]struct{},
	result *Result,
	logger *slog.Logger,
) {
	key := conn.ItemKey(item)
	if key == "" {
		logger.Error("item yielded an empty natural key")
		result.Failed++
		return
	}

	record, err := conn.Process(ctx, item)
	if err != nil {
		logger.Error("item processing failed", "key", key, "err", err)
		result.Failed++
		return
	}
	if record == nil {
		result.Skipped++
		return
	}

	e.stampRecord(record, desc.Name, key)

	if _, seen := frontier[key]; seen {
		prevHash, err := e.store.GetContentHash(ctx, record.Id)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Error("failed to read stored hash", "key", key, "err", err)
			result.Failed++
			return
		}
		if err == nil && prevHash == record.ContentHash {
			result.Skipped++
			return
		}
	}

	if err := e.store.UpsertRecord(ctx, record); err != nil {
		logger.Error("failed to persist record", "key", key, "err", err)
		result.Failed++
		return
	}

	frontier[key] = struct{}{}
	result.Written++
}

// stampRecord fills in the engine-owned fields: identity, normalized
// text and its hash, timestamps, and the validation outcome. A record
// failing validation is kept for audit as rejected, not dropped.
func (e *Engine) stampRecord(record *core.Record, source, key string) {
	record.Source = source
	record.NaturalKey = key
	record.Id = core.IDFromKey(source, key)
	record.Text = core.NormalizeText(record.Text)
	record.ContentHash = core.ContentHash(record.Text)

	now := time.Now().UTC()
	record.InsertedAt = now
	record.UpdatedAt = now

	if record.Status != core.StatusRejected {
		if err := core.ValidateRecord(record); err != nil {
			record.Status = core.StatusRejected
			record.RejectReason = err.Error()
		} else {
			record.Status = core.StatusOK
		}
	}
}

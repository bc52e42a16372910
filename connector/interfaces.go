package connector

import (
	"context"
	"iter"
	"time"

	"github.com/poiesic/corpus/core"
)

// Item is an opaque handle to a single raw item produced by a
// connector: a file path, an API page entry, a spreadsheet row. Only
// the connector that produced it knows how to interpret it.
type Item any

// Descriptor identifies a connector to the registry and the processing
// engine. It is immutable after construction.
type Descriptor struct {
	// Name is the registry key and the Source tag on produced records.
	Name string

	// KeyField names the record field the natural key is taken from.
	// It is informational; the connector's ItemKey is authoritative.
	KeyField string

	// Cooldown is the minimum delay between item fetches, used to
	// respect third-party rate limits. Zero disables pacing.
	Cooldown time.Duration
}

// Connector is the capability set every data source implements. The
// processing engine drives a connector through setup, enumeration,
// dedup and persistence; the connector only knows how to produce items
// and turn them into records.
type Connector interface {
	// Descriptor returns the connector's immutable descriptor.
	Descriptor() Descriptor

	// Setup performs idempotent preparation, such as materializing a
	// local cache of a remote archive. Side effects are confined to
	// connector-local resources. A Setup failure aborts this
	// connector's run and no other.
	Setup(ctx context.Context) error

	// Items produces a lazy, potentially unbounded sequence of raw item
	// handles. The sequence must be restartable: re-invoking after a
	// partial run re-enumerates from the start, and the engine skips
	// already-processed items. A non-nil error value ends enumeration.
	Items(ctx context.Context) iter.Seq2[Item, error]

	// ItemKey returns the deterministic natural key for an item,
	// independent of fetch order.
	ItemKey(item Item) string

	// Process turns an item into at most one record. It returns
	// (nil, nil) to skip the item silently, a record with
	// core.StatusRejected for quality-tracked exclusions, or a
	// populated record. Any error is an item-level fault: the engine
	// logs it and continues with the next item.
	Process(ctx context.Context, item Item) (*core.Record, error)
}

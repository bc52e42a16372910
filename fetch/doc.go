// Package fetch implements the incremental processing engine that
// drives source connectors to completion.
//
// A run pulls items from one connector and persists the records they
// produce, with idempotent, resumable, rate-limited and fault-isolated
// execution. Items whose content is unchanged since the last run are
// skipped without a write, so re-running against an unchanged upstream
// is a no-op. Item-level faults are logged and counted but never abort
// the run; only a setup failure is fatal, and only for that
// connector's run.
//
// Multiple connectors run concurrently as independent units of work.
// A failure in one source never affects another.
package fetch

// Package connector defines the contract every data source implements
// and the static registry that maps source names to connector
// instances.
//
// A connector produces a lazy sequence of raw items and turns each
// into zero or one normalized record. All idempotence, dedup, rate
// limiting and fault isolation lives in the processing engine; the
// connector contract stays minimal so that dozens of heterogeneous
// sources can share one pipeline.
package connector

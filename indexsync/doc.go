// Package indexsync keeps the vector index consistent with the record
// store.
//
// An update pass streams the accepted records whose content changed
// since their last embedding, splits each into overlapping chunks,
// requests embeddings in batches with retry and backoff, and replaces
// the record's chunks in the index as one unit before remembering the
// embedded content hash. A record that cannot be embedded stays stale
// and is retried on the next pass; it is never partially indexed.
//
// The separate reconciliation pass deletes index entries whose records
// were removed from the store or rejected after indexing.
package indexsync

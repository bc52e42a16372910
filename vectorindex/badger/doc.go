// Package badger provides a BadgerDB-backed implementation of
// vectorindex.Index.
//
// Each chunk is stored under a composite binary key of record ID and
// ordinal, so all chunks of a record share a prefix and can be
// replaced or deleted with a single prefix scan. A marker key per
// record carries the content hash the chunks embed, which lets
// presence checks and reconciliation avoid touching chunk values.
// Similarity search is a brute-force scan, which is adequate for the
// corpus sizes this index is built for.
package badger

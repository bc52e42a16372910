// Package chunk splits document text into overlapping, bounded-length
// chunks for embedding. Chunking exists because embedding models
// impose input-length limits and because finer-grained chunks improve
// retrieval precision.
package chunk

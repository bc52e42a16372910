// Package ai provides the embedding-provider abstraction.
//
// The index synchronization engine depends only on the Embedder
// interface; concrete providers live in sub-packages:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external services
//
// Public constructors return the Embedder interface to enforce
// abstraction; mock constructors return concrete types so tests can
// inject behavior and assert on call counts.
package ai

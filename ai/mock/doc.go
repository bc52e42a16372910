// Package mock provides test double implementations of the ai
// interfaces, so that engine tests run without external embedding
// services. The default MockEmbedder behavior is deterministic:
// identical text always produces the identical vector.
package mock

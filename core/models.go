package core

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored records.
// It is derived deterministically from the source name and the item's
// natural key, so re-fetching the same logical document always yields
// the same ID.
type ID uint64

// IDFromKey generates a deterministic ID from a source name and a
// source-specific natural key using BLAKE2b hashing. The source name
// partitions the natural-key namespace, so the same key in two sources
// produces two distinct IDs.
func IDFromKey(source, naturalKey string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(naturalKey))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Status tracks whether a record passed quality checks.
type Status int

const (
	// StatusOK marks a record that passed validation and is eligible for indexing.
	StatusOK Status = iota + 1
	// StatusRejected marks a record retained for audit but excluded from indexing.
	StatusRejected
)

// IndexState describes a record's standing relative to the vector index.
// It is derived from the stored hashes, never stored authoritatively.
type IndexState int

const (
	// IndexStateExcluded means the record is rejected and never indexed.
	IndexStateExcluded IndexState = iota
	// IndexStateNotIndexed means the record has never been embedded.
	IndexStateNotIndexed
	// IndexStateStale means the text changed since it was last embedded.
	IndexStateStale
	// IndexStateIndexed means the index holds the current content.
	IndexStateIndexed
)

// Record is the normalized document representation persisted by the
// processing engine. Records are keyed by ID and overwrite prior
// versions in place; the engine never duplicates a logical document.
type Record struct {
	Id            ID
	Source        string // connector that produced the record
	NaturalKey    string // source-intrinsic identifier used for dedup
	Title         string
	URL           string
	Authors       []string
	DatePublished time.Time // zero value means unknown
	Text          string
	ContentHash   string // digest of normalized Text
	Status        Status
	RejectReason  string // populated when Status is StatusRejected
	IndexedHash   string // ContentHash at the time of the last successful embedding
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

// IndexState reports the record's standing relative to the vector index.
func (r *Record) IndexState() IndexState {
	switch {
	case r.Status == StatusRejected:
		return IndexStateExcluded
	case r.IndexedHash == "":
		return IndexStateNotIndexed
	case r.IndexedHash != r.ContentHash:
		return IndexStateStale
	default:
		return IndexStateIndexed
	}
}

// ContentHash computes the BLAKE2b-256 digest of normalized text as a
// hex string. Normalization is limited to line-ending canonicalization
// and trimming so that the hash changes exactly when the text does.
func ContentHash(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(NormalizeText(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeText canonicalizes line endings and strips surrounding
// whitespace. It is applied before hashing and before persistence so
// that cosmetic differences between fetches do not count as changes.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

package badger

import (
	"encoding/binary"

	"github.com/poiesic/corpus/core"
)

// Key prefixes for the two key families: per-chunk entries and
// per-record markers.
const (
	chunkKeyPrefix  = "vecchk"
	recordKeyPrefix = "vecrec"
)

// makeChunkKey generates a key for one chunk of a record.
// Format: prefix:recordID:ordinal
func makeChunkKey(id core.ID, ordinal int) []byte {
	prefix := chunkKeyPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 12 // 8 bytes for record ID + 4 bytes for ordinal
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(ordinal))
	return buf
}

// makeChunkPrefix generates the key prefix covering every chunk of a record.
func makeChunkPrefix(id core.ID) []byte {
	prefix := chunkKeyPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeRecordKey generates the marker key for a record.
func makeRecordKey(id core.ID) []byte {
	prefix := recordKeyPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// recordIDFromKey extracts the record ID from a marker key.
func recordIDFromKey(key []byte) (core.ID, bool) {
	prefixSize := len(recordKeyPrefix) + 1
	if len(key) != prefixSize+8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[prefixSize:])), true
}

// chunkKeyParts extracts the record ID and ordinal from a chunk key.
func chunkKeyParts(key []byte) (core.ID, int, bool) {
	prefixSize := len(chunkKeyPrefix) + 1
	if len(key) != prefixSize+12 {
		return 0, 0, false
	}
	id := core.ID(binary.BigEndian.Uint64(key[prefixSize:]))
	ordinal := int(binary.BigEndian.Uint32(key[prefixSize+8:]))
	return id, ordinal, true
}

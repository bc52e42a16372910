// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/corpus/vectorindex"
)

var vectorSer = ord.NewSliceSer[float32](raw.Float32)

// chunkEntry is the stored value for one chunk key. The record ID and
// ordinal live in the key, not the value.
type chunkEntry struct {
	Text   string
	Title  string
	URL    string
	Source string
	Vector []float32
}

// recordMeta is the stored value for a record marker key.
type recordMeta struct {
	ContentHash string
	ChunkCount  int
}

// marshalChunkEntry serializes a chunkEntry to bytes.
func marshalChunkEntry(e chunkEntry) []byte {
	size := ord.String.Size(e.Text) +
		ord.String.Size(e.Title) +
		ord.String.Size(e.URL) +
		ord.String.Size(e.Source) +
		vectorSer.Size(e.Vector)
	buf := make([]byte, size)
	n := ord.String.Marshal(e.Text, buf)
	n += ord.String.Marshal(e.Title, buf[n:])
	n += ord.String.Marshal(e.URL, buf[n:])
	n += ord.String.Marshal(e.Source, buf[n:])
	vectorSer.Marshal(e.Vector, buf[n:])
	return buf
}

// unmarshalChunkEntry deserializes a chunkEntry from bytes.
func unmarshalChunkEntry(data []byte) (chunkEntry, error) {
	var (
		e      chunkEntry
		n      int
		err    error
		offset int
	)
	if e.Text, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return e, fmt.Errorf("%w: chunk text: %w", vectorindex.ErrSerializationFailed, err)
	}
	offset += n
	if e.Title, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return e, fmt.Errorf("%w: chunk title: %w", vectorindex.ErrSerializationFailed, err)
	}
	offset += n
	if e.URL, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return e, fmt.Errorf("%w: chunk url: %w", vectorindex.ErrSerializationFailed, err)
	}
	offset += n
	if e.Source, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return e, fmt.Errorf("%w: chunk source: %w", vectorindex.ErrSerializationFailed, err)
	}
	offset += n
	if e.Vector, _, err = vectorSer.Unmarshal(data[offset:]); err != nil {
		return e, fmt.Errorf("%w: chunk vector: %w", vectorindex.ErrSerializationFailed, err)
	}
	return e, nil
}

// marshalRecordMeta serializes a recordMeta to bytes.
func marshalRecordMeta(m recordMeta) []byte {
	size := ord.String.Size(m.ContentHash) + varint.Int.Size(m.ChunkCount)
	buf := make([]byte, size)
	n := ord.String.Marshal(m.ContentHash, buf)
	varint.Int.Marshal(m.ChunkCount, buf[n:])
	return buf
}

// unmarshalRecordMeta deserializes a recordMeta from bytes.
func unmarshalRecordMeta(data []byte) (recordMeta, error) {
	var (
		m   recordMeta
		n   int
		err error
	)
	if m.ContentHash, n, err = ord.String.Unmarshal(data); err != nil {
		return m, fmt.Errorf("%w: record hash: %w", vectorindex.ErrSerializationFailed, err)
	}
	if m.ChunkCount, _, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return m, fmt.Errorf("%w: record chunk count: %w", vectorindex.ErrSerializationFailed, err)
	}
	return m, nil
}

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

package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/radar/core"
)

// encoder writes fields sequentially into a pre-sized buffer.
type encoder struct {
	buf []byte
	n   int
}

func put[T any](e *encoder, ser mus.Serializer[T], v T) {
	e.n += ser.Marshal(v, e.buf[e.n:])
}

// decoder reads fields sequentially and remembers the first error.
type decoder struct {
	data []byte
	n    int
	err  error
}

func get[T any](d *decoder, ser mus.Serializer[T]) T {
	var zero T
	if d.err != nil {
		return zero
	}
	if d.n >= len(d.data) {
		d.err = ErrTruncatedData
		return zero
	}
	v, n, err := ser.Unmarshal(d.data[d.n:])
	if err != nil {
		d.err = err
		return zero
	}
	d.n += n
	return v
}

func (d *decoder) finish(what string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, d.err)
	}
	return nil
}

func vectorSize(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func putVector(e *encoder, v []float32) {
	put(e, varint.Int, len(v))
	for _, f := range v {
		put(e, raw.Float32, f)
	}
}

func getVector(d *decoder) []float32 {
	count := get(d, varint.Int)
	if d.err != nil {
		return nil
	}
	if count < 0 || count*4 > len(d.data)-d.n {
		d.err = ErrTruncatedData
		return nil
	}
	v := make([]float32, count)
	for i := range v {
		v[i] = get(d, raw.Float32)
	}
	return v
}

// MarshalVector serializes an embedding vector to bytes.
// Values are written as raw IEEE-754 float32 so they round-trip exactly.
func MarshalVector(v []float32) []byte {
	e := &encoder{buf: make([]byte, vectorSize(v))}
	putVector(e, v)
	return e.buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return []float32{}, nil
	}
	d := &decoder{data: data}
	v := getVector(d)
	if err := d.finish("vector"); err != nil {
		return nil, err
	}
	return v, nil
}

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(record *core.EmbeddingRecord) []byte {
	size := ord.String.Size(record.Source) +
		ord.String.Size(record.ExternalID) +
		ord.String.Size(record.ChunkID) +
		ord.String.Size(record.TextExcerpt) +
		varint.Int.Size(record.TokenCount) +
		ord.String.Size(record.SimilarityHint) +
		vectorSize(record.Embedding)

	e := &encoder{buf: make([]byte, size)}
	put(e, ord.String, record.Source)
	put(e, ord.String, record.ExternalID)
	put(e, ord.String, record.ChunkID)
	put(e, ord.String, record.TextExcerpt)
	put(e, varint.Int, record.TokenCount)
	put(e, ord.String, record.SimilarityHint)
	putVector(e, record.Embedding)
	return e.buf
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	d := &decoder{data: data}
	record := &core.EmbeddingRecord{
		Source:         get(d, ord.String),
		ExternalID:     get(d, ord.String),
		ChunkID:        get(d, ord.String),
		TextExcerpt:    get(d, ord.String),
		TokenCount:     get(d, varint.Int),
		SimilarityHint: get(d, ord.String),
	}
	record.Embedding = getVector(d)
	if err := d.finish("embedding record"); err != nil {
		return nil, err
	}
	return record, nil
}

// MarshalContentRecord serializes a ContentRecord to bytes.
// Extra entries are written in key order so equal records encode identically.
func MarshalContentRecord(record *core.ContentRecord) []byte {
	keys := make([]string, 0, len(record.Extra))
	for k := range record.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var published int64
	hasPublished := record.PublishedAt != nil
	if hasPublished {
		published = record.PublishedAt.UnixMicro()
	}

	size := ord.String.Size(record.Source) +
		ord.String.Size(record.ExternalID) +
		ord.String.Size(record.Title) +
		ord.String.Size(record.URL) +
		ord.Bool.Size(hasPublished) +
		ord.String.Size(record.Summary) +
		ord.String.Size(record.Text) +
		ord.String.Size(record.MediaType) +
		varint.Int.Size(len(keys))
	if hasPublished {
		size += varint.Int64.Size(published)
	}
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(record.Extra[k])
	}

	e := &encoder{buf: make([]byte, size)}
	put(e, ord.String, record.Source)
	put(e, ord.String, record.ExternalID)
	put(e, ord.String, record.Title)
	put(e, ord.String, record.URL)
	put(e, ord.Bool, hasPublished)
	if hasPublished {
		put(e, varint.Int64, published)
	}
	put(e, ord.String, record.Summary)
	put(e, ord.String, record.Text)
	put(e, ord.String, record.MediaType)
	put(e, varint.Int, len(keys))
	for _, k := range keys {
		put(e, ord.String, k)
		put(e, ord.String, record.Extra[k])
	}
	return e.buf
}

// UnmarshalContentRecord deserializes a ContentRecord from bytes.
func UnmarshalContentRecord(data []byte) (*core.ContentRecord, error) {
	d := &decoder{data: data}
	record := &core.ContentRecord{
		Source:     get(d, ord.String),
		ExternalID: get(d, ord.String),
		Title:      get(d, ord.String),
		URL:        get(d, ord.String),
	}
	if get(d, ord.Bool) {
		ts := time.UnixMicro(get(d, varint.Int64)).UTC()
		record.PublishedAt = &ts
	}
	record.Summary = get(d, ord.String)
	record.Text = get(d, ord.String)
	record.MediaType = get(d, ord.String)

	count := get(d, varint.Int)
	if count > 0 && d.err == nil {
		record.Extra = make(map[string]string, count)
		for i := 0; i < count && d.err == nil; i++ {
			k := get(d, ord.String)
			record.Extra[k] = get(d, ord.String)
		}
	}
	if err := d.finish("content record"); err != nil {
		return nil, err
	}
	return record, nil
}

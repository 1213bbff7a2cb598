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
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) (*EmbeddingRepository, error) {
	if backend == nil || backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	return &EmbeddingRepository{
		backend: backend,
	}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// Upsert writes records in a single batch. Existing keys are overwritten.
func (r *EmbeddingRepository) Upsert(ctx context.Context, records ...*core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateEmbeddingRecord(record); err != nil {
			return err
		}
	}

	return r.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := makeEmbeddingKey(record.Source, record.ExternalID, record.ChunkID)
			if err := wb.Set(key, storage.MarshalEmbeddingRecord(record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns all records, optionally restricted to sources.
func (r *EmbeddingRepository) Load(ctx context.Context, sources ...string) ([]*core.EmbeddingRecord, error) {
	var results []*core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, prefix := range scanPrefixes(sources) {
			err := r.scan(ctx, tx, prefix, func(record *core.EmbeddingRecord) error {
				results = append(results, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ForEach streams every stored record in key order.
func (r *EmbeddingRepository) ForEach(ctx context.Context, batchSize int, fn func([]*core.EmbeddingRecord) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		batch := make([]*core.EmbeddingRecord, 0, batchSize)
		err := r.scan(ctx, tx, []byte(embeddingPrefix), func(record *core.EmbeddingRecord) error {
			batch = append(batch, record)
			if len(batch) < batchSize {
				return nil
			}
			full := batch
			batch = make([]*core.EmbeddingRecord, 0, batchSize)
			return fn(full)
		})
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			return fn(batch)
		}
		return nil
	}, false)
}

// KnownKeys scans keys only; values are never read.
func (r *EmbeddingRepository) KnownKeys(ctx context.Context) (core.KeySet, error) {
	keys := core.KeySet{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(ctx, tx, []byte(embeddingPrefix), func(key []byte) {
			if ck, ok := parseEmbeddingKey(key); ok {
				keys.Add(ck)
			}
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *EmbeddingRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(ctx, tx, []byte(embeddingPrefix), func(_ []byte) {
			count++
		})
	}, false)
	return count, err
}

func (r *EmbeddingRepository) scan(ctx context.Context, tx *badger.Txn, prefix []byte, fn func(*core.EmbeddingRecord) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record *core.EmbeddingRecord
		err := iter.Item().Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalEmbeddingRecord(val)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

func scanKeys(ctx context.Context, tx *badger.Txn, prefix []byte, fn func(key []byte)) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(iter.Item().Key())
	}
	return nil
}

// scanPrefixes returns one prefix per distinct source in sorted order, or the
// whole table prefix when no sources are given.
func scanPrefixes(sources []string) [][]byte {
	if len(sources) == 0 {
		return [][]byte{[]byte(embeddingPrefix)}
	}
	sorted := slices.Clone(sources)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	prefixes := make([][]byte, 0, len(sorted))
	for _, source := range sorted {
		prefixes = append(prefixes, makeEmbeddingSourcePrefix(source))
	}
	return prefixes
}

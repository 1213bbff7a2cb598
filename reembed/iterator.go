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

package reembed

import (
	"context"

	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

const (
	// DefaultBatchSize is the default number of chunks handed to the embedder at once
	DefaultBatchSize = 100
)

// RecordIterator walks every stored chunk in key order and yields batches
// that hold whole content items. A batch reaches at least batchSize chunks
// unless the table runs out, and may exceed it by the remainder of one item.
type RecordIterator struct {
	repo      storage.EmbeddingRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: preferred number of chunks per batch (defaults when <= 0)
func NewRecordIterator(repo storage.EmbeddingRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for every batch. Iteration stops on the first error from fn.
// Context cancellation is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.EmbeddingRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pending []*core.EmbeddingRecord
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := pending
		pending = nil
		if err := fn(batch); err != nil {
			return err
		}
		return ctx.Err()
	}

	err := it.repo.ForEach(ctx, it.batchSize, func(records []*core.EmbeddingRecord) error {
		for _, record := range records {
			if len(pending) >= it.batchSize && pending[len(pending)-1].Key() != record.Key() {
				if err := flush(); err != nil {
					return err
				}
			}
			pending = append(pending, record)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

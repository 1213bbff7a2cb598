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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the preferred number of chunks per embedding request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding request
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Report summarizes a completed run.
type Report struct {
	Chunks  int
	Batches int
	Elapsed time.Duration
}

// Reembedder replaces the vector of every stored chunk.
type Reembedder struct {
	repo      storage.EmbeddingRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.EmbeddingRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembedder"),
	}
}

// Run re-embeds every stored chunk with the configured embedder.
// Batches written before a failure keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (*Report, error) {
	total, err := r.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}

	report := &Report{}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in store (0 chunks)\n")
		return report, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n", total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(records []*core.EmbeddingRecord) error {
		if err := r.processor.Process(ctx, records); err != nil {
			return err
		}
		report.Chunks += len(records)
		report.Batches++
		tracker.Update(report.Chunks)
		r.logger.Debug("batch re-embedded", "chunks", len(records), "done", report.Chunks, "total", total)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("reembedding after %d chunks: %w", report.Chunks, err)
	}

	tracker.Finish()
	report.Elapsed = tracker.Elapsed()

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		report.Chunks, report.Elapsed.Round(time.Second), float64(report.Chunks)/max(report.Elapsed.Seconds(), 1e-9))

	return report, nil
}

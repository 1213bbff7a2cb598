package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// BatchProcessor re-embeds one batch of chunks and writes the new vectors back.
type BatchProcessor struct {
	repo           storage.EmbeddingRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding request
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.EmbeddingRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the excerpts of records in one request and upserts them.
// Nothing is written unless every chunk in the batch receives a vector.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.TextExcerpt
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(records), err)
	}

	if len(vectors) != len(records) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(records), len(vectors))
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return fmt.Errorf("%w: %s/%s", ErrEmptyVector, records[i].Key(), records[i].ChunkID)
		}
	}

	updated := make([]*core.EmbeddingRecord, len(records))
	for i, record := range records {
		next := *record
		next.Embedding = vectors[i]
		updated[i] = &next
	}

	if err := bp.repo.Upsert(ctx, updated...); err != nil {
		return fmt.Errorf("storing re-embedded chunks: %w", err)
	}
	return nil
}

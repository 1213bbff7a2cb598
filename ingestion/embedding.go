package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// embeddingProcessor embeds and stores one content item's chunks at a time.
type embeddingProcessor struct {
	repository storage.EmbeddingRepository
	embedder   ai.Embedder
	logger     *slog.Logger
}

func newEmbeddingProcessor(repository storage.EmbeddingRepository, embedder ai.Embedder, logger *slog.Logger) (*embeddingProcessor, error) {
	if repository == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		repository: repository,
		embedder:   embedder,
		logger:     logger.With("processor", "embeddings"),
	}, nil
}

// process embeds a group with a single request and upserts the result.
// Nothing from the group is written unless every chunk received a vector.
func (ep *embeddingProcessor) process(ctx context.Context, group *draftGroup) ([]*core.EmbeddingRecord, error) {
	texts := make([]string, len(group.drafts))
	for i, draft := range group.drafts {
		texts[i] = draft.TextExcerpt
	}

	ep.logger.Debug("generating embeddings", "key", group.key, "chunks", len(texts))
	vectors, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "key", group.key, "err", err)
		return nil, err
	}

	records, err := AttachVectors(group.drafts, vectors)
	if err != nil {
		return nil, err
	}

	if err := ep.repository.Upsert(ctx, records...); err != nil {
		return nil, err
	}
	return records, nil
}

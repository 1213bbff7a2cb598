package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/chunk"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// Pipeline orchestrates the ingestion of content records.
type Pipeline struct {
	embeddingRepository storage.EmbeddingRepository
	rawLog              storage.RawLog
	chunker             *chunk.Chunker
	archive             *TextArchive
	embeddingProc       *embeddingProcessor
	logger              *slog.Logger
}

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	Fetched  int // records offered
	New      int // records that passed the dedup gate
	Chunks   int // embedding records written
	Archived int // text files written
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunker replaces the default 450-word chunker.
func WithChunker(chunker *chunk.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker == nil {
			chunker = chunk.Default()
		}
		p.chunker = chunker
		return nil
	}
}

// WithTextArchive writes the text of newly ingested items below dir.
// With no sources listed every source is archived.
func WithTextArchive(dir string, sources ...string) Option {
	return func(p *Pipeline) error {
		if dir == "" {
			return fmt.Errorf("text archive directory required")
		}
		p.archive = NewTextArchive(dir, sources...)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	embeddingRepository storage.EmbeddingRepository,
	rawLog storage.RawLog,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if embeddingRepository == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if rawLog == nil {
		return nil, ErrRawLogRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		embeddingRepository: embeddingRepository,
		rawLog:              rawLog,
		chunker:             chunk.Default(),
		logger:              slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	embeddingProc, err := newEmbeddingProcessor(embeddingRepository, embedder, p.logger)
	if err != nil {
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// FilterNew drops items whose content identity already has stored chunks.
// Duplicates within items are reduced to their first occurrence.
func (p *Pipeline) FilterNew(ctx context.Context, items []*core.ContentRecord) ([]*core.ContentRecord, error) {
	known, err := p.embeddingRepository.KnownKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading known keys: %w", err)
	}

	fresh := make([]*core.ContentRecord, 0, len(items))
	seen := make(core.KeySet)
	for _, item := range items {
		key := item.Key()
		if known.Contains(key) || seen.Contains(key) {
			continue
		}
		seen.Add(key)
		fresh = append(fresh, item)
	}
	return fresh, nil
}

// StoreContent appends items to the raw log, then chunks, embeds and upserts them.
// It returns the number of embedding records written.
func (p *Pipeline) StoreContent(ctx context.Context, items []*core.ContentRecord) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	for _, item := range items {
		if err := core.ValidateContentRecord(item); err != nil {
			return 0, err
		}
	}

	for _, item := range items {
		if err := p.rawLog.Append(ctx, item); err != nil {
			return 0, fmt.Errorf("appending %s to raw log: %w", item.Key(), err)
		}
	}

	var drafts []*core.ChunkDraft
	for _, item := range items {
		pending := BuildPendingChunks(p.chunker, item)
		if len(pending) == 0 {
			p.logger.Warn("skipping item without text or summary", "key", item.Key().String())
			continue
		}
		drafts = append(drafts, pending...)
	}

	written := 0
	for _, group := range groupDrafts(drafts) {
		records, err := p.embeddingProc.process(ctx, group)
		if err != nil {
			return written, fmt.Errorf("ingesting %s: %w", group.key, err)
		}
		written += len(records)
	}

	p.logger.Info("stored content", "items", len(items), "chunks", written)
	return written, nil
}

// Ingest runs the dedup gate, archives new item text when configured, and stores the new items.
// Every item is validated first; a rejected batch leaves no archive files behind.
func (p *Pipeline) Ingest(ctx context.Context, items []*core.ContentRecord) (*IngestReport, error) {
	report := &IngestReport{Fetched: len(items)}

	for _, item := range items {
		if err := core.ValidateContentRecord(item); err != nil {
			return report, err
		}
	}

	fresh, err := p.FilterNew(ctx, items)
	if err != nil {
		return report, err
	}
	report.New = len(fresh)
	if len(fresh) == 0 {
		p.logger.Info("no new content to ingest", "fetched", len(items))
		return report, nil
	}

	if p.archive != nil {
		for _, item := range fresh {
			if !p.archive.Accepts(item) {
				continue
			}
			if _, err := p.archive.Write(item); err != nil {
				return report, err
			}
			report.Archived++
		}
	}

	report.Chunks, err = p.StoreContent(ctx, fresh)
	return report, err
}

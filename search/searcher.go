package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// DefaultShardSize is the number of candidates one pool task scores.
const DefaultShardSize = 2048

// Searcher ranks stored chunks against a query by cosine similarity.
// Every candidate is scored before the result is truncated.
type Searcher struct {
	repository storage.EmbeddingRepository
	embedder   ai.Embedder
	pool       *ants.Pool
	shardSize  int
	cache      *ristretto.Cache[string, []float32]
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPoolSize sets the number of workers scoring candidate shards.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithShardSize sets how many candidates each worker scores.
// Candidate sets no larger than one shard are scored inline.
func WithShardSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			return fmt.Errorf("shard size must be positive: %d", size)
		}
		s.shardSize = size
		return nil
	}
}

// WithQueryCache keeps up to maxEntries query vectors so repeated queries
// skip the embedding call.
func WithQueryCache(maxEntries int64) Option {
	return func(s *Searcher) error {
		if maxEntries < 1 {
			return nil
		}
		cache, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
			NumCounters:        maxEntries * 10,
			MaxCost:            maxEntries,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return err
		}
		if s.cache != nil {
			s.cache.Close()
		}
		s.cache = cache
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(repository storage.EmbeddingRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if repository == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		repository: repository,
		embedder:   embedder,
		pool:       pool,
		shardSize:  DefaultShardSize,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to topK chunks ranked by similarity to query, optionally
// restricted to sources. topK <= 0 returns every candidate.
func (s *Searcher) Search(ctx context.Context, query string, topK int, sources ...string) ([]*core.ScoredChunk, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil, sources...)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor, sources ...string) ([]*core.ScoredChunk, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	vector, cached, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector), cached)

	candidates, err := s.repository.Load(ctx, sources...)
	if err != nil {
		s.logger.Error("error loading candidates", "sources", sources, "err", err)
		return nil, err
	}
	monitor.AfterLoad(len(candidates))

	results := s.rank(vector, candidates, topK, monitor)
	monitor.Finish(results)

	return results, nil
}

// Release releases the worker pool and query cache.
// The searcher should not be used after calling Release.
func (s *Searcher) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, bool, error) {
	if s.cache != nil {
		if vector, ok := s.cache.Get(query); ok {
			return vector, true, nil
		}
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil && len(vector) > 0 {
		s.cache.Set(query, vector, 1)
		s.cache.Wait()
	}
	return vector, false, nil
}

func (s *Searcher) rank(vector []float32, candidates []*core.EmbeddingRecord, topK int, monitor SearchMonitor) []*core.ScoredChunk {
	scores := make([]float64, len(candidates))
	valid := make([]bool, len(candidates))
	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			scores[i], valid[i] = cosine(vector, candidates[i].Embedding)
		}
	}

	if len(candidates) <= s.shardSize {
		scoreRange(0, len(candidates))
	} else {
		var wg sync.WaitGroup
		for lo := 0; lo < len(candidates); lo += s.shardSize {
			hi := min(lo+s.shardSize, len(candidates))
			wg.Add(1)
			if err := s.pool.Submit(func() {
				defer wg.Done()
				scoreRange(lo, hi)
			}); err != nil {
				scoreRange(lo, hi)
				wg.Done()
			}
		}
		wg.Wait()
	}

	results := make([]*core.ScoredChunk, len(candidates))
	for i, candidate := range candidates {
		if !valid[i] {
			s.logger.Debug("degenerate candidate vector", "key", candidate.Key().String(), "chunk", candidate.ChunkID)
			monitor.DegenerateCandidate(candidate.Key(), candidate.ChunkID)
		}
		results[i] = &core.ScoredChunk{
			Source:         candidate.Source,
			ExternalID:     candidate.ExternalID,
			ChunkID:        candidate.ChunkID,
			Score:          scores[i],
			TextExcerpt:    candidate.TextExcerpt,
			SimilarityHint: candidate.SimilarityHint,
			TokenCount:     candidate.TokenCount,
		}
	}

	slices.SortStableFunc(results, func(a, b *core.ScoredChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

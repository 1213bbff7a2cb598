package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/poiesic/radar/ai/mock"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
	"github.com/poiesic/radar/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) storage.EmbeddingRepository {
	embeddings, rawLog, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		rawLog.Close()
		embeddings.Close()
		backend.Close()
	})
	return embeddings
}

// unit returns a 2-d unit vector whose cosine with [1, 0] is x.
func unit(x float64) []float32 {
	return []float32{float32(x), float32(math.Sqrt(1 - x*x))}
}

func chunkRecord(source, externalID string, index int, vector []float32) *core.EmbeddingRecord {
	return &core.EmbeddingRecord{
		Source:         source,
		ExternalID:     externalID,
		ChunkID:        core.ChunkID(externalID, index),
		TextExcerpt:    fmt.Sprintf("%s/%s #%d", source, externalID, index),
		TokenCount:     2,
		Embedding:      vector,
		SimilarityHint: "hint",
	}
}

func fixedQuery(vector []float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}
	return embedder
}

func setupSearcher(t *testing.T, repo storage.EmbeddingRepository, embedder *mock.MockEmbedder, opts ...Option) *Searcher {
	searcher, err := NewSearcher(repo, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(searcher.Release)
	return searcher
}

func TestNewSearcher(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(repo, embedder)
		require.NoError(t, err)
		defer searcher.Release()
		assert.NotNil(t, searcher)
	})

	t.Run("with options", func(t *testing.T) {
		searcher, err := NewSearcher(repo, embedder,
			WithLogger(slog.Default()),
			WithPoolSize(2),
			WithShardSize(16),
			WithQueryCache(32),
		)
		require.NoError(t, err)
		defer searcher.Release()
		assert.Equal(t, 16, searcher.shardSize)
		assert.NotNil(t, searcher.cache)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(repo, embedder, WithLogger(nil))
		require.NoError(t, err)
		defer searcher.Release()
		assert.NotNil(t, searcher.logger)
	})

	t.Run("invalid shard size", func(t *testing.T) {
		_, err := NewSearcher(repo, embedder, WithShardSize(0))
		assert.Error(t, err)
	})

	t.Run("nil repository", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrEmbeddingRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(repo, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSearch_EmptyStore(t *testing.T) {
	searcher := setupSearcher(t, setupRepository(t), mock.NewMockEmbedder())

	results, err := searcher.Search(context.Background(), "test query", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_RankingOrder(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		chunkRecord("a", "low", 0, unit(0.1)),
		chunkRecord("a", "high", 0, unit(0.9)),
		chunkRecord("a", "mid", 0, unit(0.5)),
	))

	searcher := setupSearcher(t, repo, fixedQuery([]float32{1, 0}))

	results, err := searcher.Search(ctx, "anything", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].ExternalID)
	assert.InDelta(t, 0.9, results[0].Score, 1e-6)
	assert.Equal(t, "mid", results[1].ExternalID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)

	assert.Equal(t, core.ChunkID("high", 0), results[0].ChunkID)
	assert.Equal(t, "a/high #0", results[0].TextExcerpt)
	assert.Equal(t, "hint", results[0].SimilarityHint)
	assert.Equal(t, 2, results[0].TokenCount)

	all, err := searcher.Search(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "topK <= 0 returns every candidate")
}

func TestSearch_TiesKeepScanOrder(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Upsert(ctx, chunkRecord("src", fmt.Sprintf("item-%d", i), 0, []float32{1, 1})))
	}

	searcher := setupSearcher(t, repo, fixedQuery([]float32{1, 1}))
	for run := 0; run < 3; run++ {
		results, err := searcher.Search(ctx, "q", 5)
		require.NoError(t, err)
		for i, r := range results {
			assert.Equal(t, fmt.Sprintf("item-%d", i), r.ExternalID)
		}
	}
}

func TestSearch_DegenerateVectorsScoreZero(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		chunkRecord("a", "empty", 0, nil),
		chunkRecord("a", "mismatch", 0, []float32{1, 0, 0}),
		chunkRecord("a", "infinite", 0, []float32{float32(math.Inf(1)), 0}),
		chunkRecord("a", "negative", 0, []float32{-1, 0}),
		chunkRecord("a", "good", 0, []float32{1, 0}),
	))

	monitor := &recordingMonitor{}
	searcher := setupSearcher(t, repo, fixedQuery([]float32{1, 0}))
	results, err := searcher.SearchWithMonitor(ctx, "q", 10, monitor)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, "good", results[0].ExternalID)
	for _, r := range results[1:4] {
		assert.Equal(t, 0.0, r.Score, r.ExternalID)
	}
	assert.Equal(t, "negative", results[4].ExternalID)

	assert.Equal(t, "q", monitor.query)
	assert.Equal(t, 5, monitor.candidates)
	assert.ElementsMatch(t, []string{"empty", "mismatch", "infinite"}, monitor.degenerate)
	assert.Len(t, monitor.results, 5)
}

func TestSearch_SourceFilter(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		chunkRecord("wordpress", "p1", 0, []float32{1, 0}),
		chunkRecord("tiktok", "v1", 0, []float32{1, 0}),
		chunkRecord("rss", "r1", 0, []float32{1, 0}),
	))

	searcher := setupSearcher(t, repo, fixedQuery([]float32{1, 0}))
	results, err := searcher.Search(ctx, "q", 10, "tiktok", "rss")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "wordpress", r.Source)
	}
}

func TestSearch_ShardedMatchesInline(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		x := float64(i%17) / 17
		require.NoError(t, repo.Upsert(ctx, chunkRecord("src", fmt.Sprintf("item-%02d", i), 0, unit(x))))
	}

	query := []float32{1, 0}
	inline := setupSearcher(t, repo, fixedQuery(query))
	sharded := setupSearcher(t, repo, fixedQuery(query), WithPoolSize(4), WithShardSize(7))

	want, err := inline.Search(ctx, "q", 20)
	require.NoError(t, err)
	got, err := sharded.Search(ctx, "q", 20)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSearch_EmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedder error")
	}
	searcher := setupSearcher(t, setupRepository(t), embedder)

	_, err := searcher.Search(context.Background(), "q", 10)
	assert.Error(t, err)
}

func TestSearch_QueryCache(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, chunkRecord("a", "1", 0, []float32{1, 0})))

	embedder := fixedQuery([]float32{1, 0})
	searcher := setupSearcher(t, repo, embedder, WithQueryCache(16))

	monitor := &recordingMonitor{}
	_, err := searcher.SearchWithMonitor(ctx, "same query", 5, monitor)
	require.NoError(t, err)
	assert.False(t, monitor.cached)

	_, err = searcher.SearchWithMonitor(ctx, "same query", 5, monitor)
	require.NoError(t, err)
	assert.True(t, monitor.cached)
	assert.Equal(t, 1, embedder.CallCount())
}

type recordingMonitor struct {
	query      string
	cached     bool
	candidates int
	degenerate []string
	results    []*core.ScoredChunk
}

func (m *recordingMonitor) Start(query string)                { m.query = query }
func (m *recordingMonitor) AfterEmbedding(_ int, cached bool) { m.cached = cached }
func (m *recordingMonitor) AfterLoad(candidates int)          { m.candidates = candidates }
func (m *recordingMonitor) DegenerateCandidate(key core.ContentKey, _ string) {
	m.degenerate = append(m.degenerate, key.ExternalID)
}
func (m *recordingMonitor) Finish(results []*core.ScoredChunk) { m.results = results }

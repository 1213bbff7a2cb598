package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
	"github.com/poiesic/radar/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls          [][]string
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls = append(m.calls, texts)
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{7, 7}
	}
	return result, nil
}

func setupTestDB(t *testing.T) storage.EmbeddingRepository {
	embeddings, rawLog, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		rawLog.Close()
		embeddings.Close()
		backend.Close()
	})
	return embeddings
}

// seed stores chunks chunks for each external id under source "src".
func seed(t *testing.T, repo storage.EmbeddingRepository, chunks int, externalIDs ...string) {
	var records []*core.EmbeddingRecord
	for _, id := range externalIDs {
		for i := 0; i < chunks; i++ {
			records = append(records, &core.EmbeddingRecord{
				Source:         "src",
				ExternalID:     id,
				ChunkID:        core.ChunkID(id, i),
				TextExcerpt:    fmt.Sprintf("%s part %d", id, i),
				TokenCount:     3,
				Embedding:      []float32{1, 0},
				SimilarityHint: "hint " + id,
			})
		}
	}
	require.NoError(t, repo.Upsert(context.Background(), records...))
}

func TestBatchProcessor_Process(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 2, "a")

	records, err := repo.Load(ctx)
	require.NoError(t, err)

	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(repo, embedder, 3, 10*time.Millisecond)
	require.NoError(t, processor.Process(ctx, records))

	require.Len(t, embedder.calls, 1, "one request per batch")
	assert.ElementsMatch(t, []string{"a part 0", "a part 1"}, embedder.calls[0])

	updated, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for i, record := range updated {
		assert.Equal(t, []float32{7, 7}, record.Embedding)
		assert.Equal(t, records[i].ChunkID, record.ChunkID)
		assert.Equal(t, records[i].TextExcerpt, record.TextExcerpt)
		assert.Equal(t, "hint a", record.SimilarityHint)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(setupTestDB(t), embedder, 3, 10*time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Empty(t, embedder.calls)
}

func TestBatchProcessor_Retry(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 1, "a")
	records, err := repo.Load(ctx)
	require.NoError(t, err)

	attempts := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("rate limited")
			}
			return [][]float32{{5}}, nil
		},
	}

	processor := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(ctx, records))
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_FailureLeavesStoreUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(ctx context.Context, texts []string) ([][]float32, error)
		errIs error
	}{
		{
			name: "persistent error",
			fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				return nil, assert.AnError
			},
			errIs: assert.AnError,
		},
		{
			name: "count mismatch",
			fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				return [][]float32{{1}}, nil
			},
			errIs: ErrEmbeddingCountMismatch,
		},
		{
			name: "empty vector",
			fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				return [][]float32{{1}, {}}, nil
			},
			errIs: ErrEmptyVector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			ctx := context.Background()
			seed(t, repo, 2, "a")
			records, err := repo.Load(ctx)
			require.NoError(t, err)

			processor := NewBatchProcessor(repo, &mockEmbedder{embedTextsFunc: tt.fn}, 2, time.Millisecond)
			err = processor.Process(ctx, records)
			assert.ErrorIs(t, err, tt.errIs)

			stored, err := repo.Load(ctx)
			require.NoError(t, err)
			for _, record := range stored {
				assert.Equal(t, []float32{1, 0}, record.Embedding)
			}
		})
	}
}

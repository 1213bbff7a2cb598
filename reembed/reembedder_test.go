package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		ReportInterval: 3,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func TestReembedder_Run(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 2, "a", "b", "c", "d", "e")

	var buf bytes.Buffer
	embedder := &mockEmbedder{}
	report, err := NewReembedder(repo, embedder, testConfig(), &buf).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 10, report.Chunks)
	assert.Equal(t, 3, report.Batches, "batches of 4, 4 and 2 chunks")
	assert.Len(t, embedder.calls, 3)

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 10, "re-embedding never adds chunks")
	for _, record := range stored {
		assert.Equal(t, []float32{7, 7}, record.Embedding)
	}

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 chunks")
	assert.Contains(t, output, "10/10", "should show completion")
	assert.Contains(t, output, "Reembedding complete")
}

func TestReembedder_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	embedder := &mockEmbedder{}

	report, err := NewReembedder(setupTestDB(t), embedder, DefaultConfig(), &buf).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)
	assert.Empty(t, embedder.calls)
	assert.Contains(t, buf.String(), "0 chunks")
}

func TestReembedder_PartialFailure(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	seed(t, repo, 1, "a", "b", "c", "d")

	calls := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("model unavailable")
			}
			return [][]float32{{7, 7}, {7, 7}, {7, 7}}, nil
		},
	}

	config := testConfig()
	config.MaxRetries = 2
	report, err := NewReembedder(repo, embedder, config, nil).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 3, report.Chunks, "the first batch was written")

	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 7}, stored[0].Embedding)
	assert.Equal(t, []float32{1, 0}, stored[3].Embedding)
}

func TestReembedder_ContextCanceled(t *testing.T) {
	repo := setupTestDB(t)
	seed(t, repo, 1, "a", "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReembedder(repo, &mockEmbedder{}, testConfig(), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultBatchSize, config.BatchSize)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryDelay)
}

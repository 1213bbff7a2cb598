package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashVector(t *testing.T) {
	a := HashVector("solar panels on the roof", DefaultDimensions)
	b := HashVector("Solar panels, on the roof!", DefaultDimensions)
	c := HashVector("quarterly earnings call transcript", DefaultDimensions)

	require.Len(t, a, DefaultDimensions)
	assert.Equal(t, a, b, "case and punctuation are ignored")
	assert.InDelta(t, 1.0, cosine(a, a), 1e-5)
	assert.Greater(t, cosine(a, b), cosine(a, c))

	empty := HashVector("   ", DefaultDimensions)
	assert.Equal(t, make([]float32, DefaultDimensions), empty)
}

func TestMockEmbedder_RecordsCalls(t *testing.T) {
	embedder := NewMockEmbedder()
	ctx := context.Background()

	vectors, err := embedder.EmbedTexts(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	_, err = embedder.EmbedText(ctx, "three")
	require.NoError(t, err)

	assert.Equal(t, 2, embedder.CallCount())
	assert.Equal(t, [][]string{{"one", "two"}, {"three"}}, embedder.Batches())

	embedder.Reset()
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, embedder.Batches())
}

func TestMockEmbedder_CustomFunc(t *testing.T) {
	embedder := NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, assert.AnError
	}

	_, err := embedder.EmbedTexts(context.Background(), []string{"x"})
	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider()
	defer provider.Close()

	mockProvider := provider.(*MockProvider)
	assert.Same(t, mockProvider.GetMockEmbedder(), provider.Embedder())
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/radar/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/openai"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingDatum struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

func newEmbeddingServer(t *testing.T, drop int) (*httptest.Server, *[]embeddingRequest) {
	var requests []embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		data := make([]embeddingDatum, 0, len(req.Input))
		for i, text := range req.Input[:len(req.Input)-drop] {
			data = append(data, embeddingDatum{
				Object:    "embedding",
				Embedding: []float32{float32(len(text)), float32(i)},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	server, requests := newEmbeddingServer(t, 0)

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(server.URL),
		ai.WithEmbeddingModel("test-model"),
	))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{3, 1}, vectors[1])

	require.NotEmpty(t, *requests)
	assert.Equal(t, "test-model", (*requests)[0].Model)

	vector, err := embedder.EmbedText(context.Background(), "cc")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0}, vector)
}

func TestEmbedder_CountMismatch(t *testing.T) {
	server, _ := newEmbeddingServer(t, 1)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, ErrEmbeddingCount)
	assert.ErrorIs(t, err, openai.ErrUnexpectedResponseLength)
	assert.Contains(t, err.Error(), "sent 2")
	assert.Nil(t, vectors)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)

	provider, err := NewProvider(ai.NewConfig())
	require.NoError(t, err)
	assert.NotNil(t, provider.Embedder())
	assert.NoError(t, provider.Close())
}

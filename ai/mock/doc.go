// Package mock provides test double implementations of the AI service interfaces.
//
// # Usage in Tests
//
//	// Default deterministic behavior
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	// Check call counts and the batches that were sent
//	count := embedder.CallCount()
//	batches := embedder.Batches()
//
// # Default Behavior
//
// MockEmbedder hashes each word of the text into a fixed-size count vector and
// normalizes it, so texts with shared vocabulary are close under cosine similarity.
package mock

package ingestion

import "errors"

var (
	// ErrEmbeddingRepositoryRequired is returned when an embedding repository is not provided.
	ErrEmbeddingRepositoryRequired = errors.New("embedding repository required")

	// ErrRawLogRequired is returned when a raw log is not provided.
	ErrRawLogRequired = errors.New("raw log required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingCountMismatch is returned when the embedder answers a batch
	// with a different number of vectors than chunks were sent.
	ErrEmbeddingCountMismatch = errors.New("embedding result count mismatch")

	// ErrEmptyVector is returned when the embedder answers with an empty vector.
	ErrEmptyVector = errors.New("embedder returned an empty vector")
)

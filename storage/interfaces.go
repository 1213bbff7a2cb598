package storage

import (
	"context"

	"github.com/poiesic/radar/core"
)

// EmbeddingRepository is the durable keyed table of EmbeddingRecords.
// Implementations must tolerate concurrent readers while a single writer upserts.
type EmbeddingRepository interface {
	// Upsert inserts or overwrites records keyed by (Source, ExternalID, ChunkID).
	// Calling it again with the same records does not grow the table.
	Upsert(ctx context.Context, records ...*core.EmbeddingRecord) error

	// Load returns every stored record, restricted to the given sources when any are passed.
	// Records are returned in a fixed order (source, external id, chunk id).
	Load(ctx context.Context, sources ...string) ([]*core.EmbeddingRecord, error)

	// ForEach streams stored records in the same order as Load, in batches of up to batchSize.
	// Iteration stops at the first error returned by fn.
	ForEach(ctx context.Context, batchSize int, fn func([]*core.EmbeddingRecord) error) error

	// KnownKeys returns every content identity with at least one stored chunk.
	KnownKeys(ctx context.Context) (core.KeySet, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// RawLog is the append-only audit trail of normalized ContentRecords.
type RawLog interface {
	// Append adds one record to the end of the log.
	Append(ctx context.Context, record *core.ContentRecord) error

	// Lookup returns the most recently appended record for a content identity.
	// Returns ErrNotFound if the identity was never appended.
	Lookup(ctx context.Context, key core.ContentKey) (*core.ContentRecord, error)

	// Close releases resources held by the log.
	Close() error
}

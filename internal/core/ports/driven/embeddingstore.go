package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// EmbeddingStore persists embedding chunks.
// The first chunk ever stored fixes the corpus dimension; it stays fixed
// even if every chunk is later deleted.
type EmbeddingStore interface {
	// AddChunk stores one chunk and assigns its ID.
	// Returns a DimensionError or DuplicateChunkError on conflict.
	AddChunk(ctx context.Context, chunk *domain.EmbeddingChunk) error

	// AddChunks stores all chunks or none, returning them with IDs assigned.
	AddChunks(ctx context.Context, chunks []domain.EmbeddingChunk) ([]domain.EmbeddingChunk, error)

	// ListByContent returns an item's chunks in ascending chunk index.
	ListByContent(ctx context.Context, ref domain.ContentRef) ([]domain.EmbeddingChunk, error)

	// ListAll returns every chunk in ascending ID.
	ListAll(ctx context.Context) ([]domain.EmbeddingChunk, error)

	// ForEach calls fn for every chunk in ascending ID.
	// Iteration stops at the first error from fn or when ctx is cancelled.
	ForEach(ctx context.Context, fn func(chunk *domain.EmbeddingChunk) error) error

	// GetChunk retrieves a chunk by ID.
	GetChunk(ctx context.Context, id int64) (*domain.EmbeddingChunk, error)

	// CountAll returns the number of stored chunks.
	CountAll(ctx context.Context) (int, error)

	// TotalStorageBytes sums the storage estimate of every chunk.
	TotalStorageBytes(ctx context.Context) (int64, error)

	// Dimension returns the corpus dimension, or 0 if no chunk was ever stored.
	Dimension(ctx context.Context) (int, error)

	// DeleteByContent removes an item's chunks and returns the deleted IDs.
	DeleteByContent(ctx context.Context, ref domain.ContentRef) ([]int64, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// VectorIndex provides approximate nearest neighbour candidates.
// Scores it returns are advisory; callers rescore against the stored vectors.
type VectorIndex interface {
	// Add inserts or replaces the vector for a chunk.
	Add(ctx context.Context, chunk domain.EmbeddingChunk) error

	// Delete removes chunk vectors from the index. Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs ...int64) error

	// Search finds up to k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Count returns the number of indexed vectors.
	Count() int

	// Close releases resources.
	Close() error
}

// RebuildableIndex is a VectorIndex that can reload itself from the chunk store.
type RebuildableIndex interface {
	VectorIndex

	// Rebuild replaces the index contents with every stored chunk.
	// It returns the number of vectors indexed.
	Rebuild(ctx context.Context, store EmbeddingStore) (int, error)
}

// VectorHit represents a similarity search candidate.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID int64

	// Similarity is the index's cosine similarity estimate.
	Similarity float64
}

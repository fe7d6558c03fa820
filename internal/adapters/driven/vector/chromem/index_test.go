package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

func chunk(id int64, vector ...float32) domain.EmbeddingChunk {
	return domain.EmbeddingChunk{
		ID:      id,
		Content: domain.TextRef(1),
		Text:    "chunk",
		Vector:  vector,
	}
}

func TestIndex_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := New()
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, chunk(1, 1, 0)))
	require.NoError(t, idx.Add(ctx, chunk(2, 0, 1)))
	require.NoError(t, idx.Add(ctx, chunk(3, 1, 1)))
	assert.Equal(t, 3, idx.Count())

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	assert.Equal(t, int64(3), hits[1].ChunkID)
}

func TestIndex_SearchClampsK(t *testing.T) {
	ctx := context.Background()
	idx, err := New()
	require.NoError(t, err)

	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add(ctx, chunk(1, 1, 0)))
	hits, err = idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndex_ZeroVectors(t *testing.T) {
	ctx := context.Background()
	idx, err := New()
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, chunk(1, 0, 0)))
	assert.Equal(t, 1, idx.Count())

	require.NoError(t, idx.Add(ctx, chunk(2, 1, 0)))
	hits, err := idx.Search(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ChunkID)

	require.NoError(t, idx.Delete(ctx, 1))
	assert.Equal(t, 1, idx.Count())
}

func TestIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx, err := New()
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, chunk(1, 1, 0)))
	require.NoError(t, idx.Add(ctx, chunk(2, 0, 1)))

	require.NoError(t, idx.Delete(ctx, 1, 99))
	assert.Equal(t, 1, idx.Count())
	require.NoError(t, idx.Delete(ctx))
}

func TestIndex_Rebuild(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEmbeddingStore()
	_, err := store.AddChunks(ctx, []domain.EmbeddingChunk{
		{Content: domain.TextRef(1), ChunkIndex: 0, Text: "a", Vector: []float32{1, 0}},
		{Content: domain.TextRef(1), ChunkIndex: 1, Text: "b", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)

	idx, err := New()
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, chunk(42, 1, 1)))

	n, err := idx.Rebuild(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ChunkID)
}

func TestIndex_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewPersistent(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, chunk(7, 0.6, 0.8)))

	reopened, err := NewPersistent(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func chunk(ref domain.ContentRef, index int, vector ...float32) domain.EmbeddingChunk {
	return domain.EmbeddingChunk{
		Content:    ref,
		ChunkIndex: index,
		Text:       "chunk text",
		Vector:     vector,
		CreatedAt:  baseTime,
	}
}

func TestEmbeddingStore_AddChunksFixesDimension(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	dim, err := es.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	stored, err := es.AddChunks(ctx, []domain.EmbeddingChunk{
		chunk(domain.TextRef(1), 0, 1, 0, 0),
		chunk(domain.TextRef(1), 1, 0, 1, 0),
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Less(t, stored[0].ID, stored[1].ID)

	dim, err = es.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	_, err = es.AddChunks(ctx, []domain.EmbeddingChunk{chunk(domain.TextRef(2), 0, 1, 2)})
	var derr *domain.DimensionError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Expected)
	assert.Equal(t, 2, derr.Got)
}

func TestEmbeddingStore_AddChunksIsAtomic(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	_, err := es.AddChunks(ctx, []domain.EmbeddingChunk{
		chunk(domain.FileRef(1), 0, 1, 1),
		chunk(domain.FileRef(1), 0, 2, 2),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateChunkIndex)

	count, err := es.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	dim, err := es.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim, "failed batch must not fix the dimension")

	_, err = es.AddChunks(ctx, []domain.EmbeddingChunk{chunk(domain.FileRef(1), 0)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEmbeddingStore_DuplicateAcrossBatches(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	first := chunk(domain.TextRef(1), 0, 1, 0)
	require.NoError(t, es.AddChunk(ctx, &first))
	assert.Equal(t, int64(1), first.ID)

	again := chunk(domain.TextRef(1), 0, 0, 1)
	assert.ErrorIs(t, es.AddChunk(ctx, &again), domain.ErrDuplicateChunkIndex)

	// Same index on a different kind is a different item.
	doc := chunk(domain.DocumentRef(1), 0, 0, 1)
	assert.NoError(t, es.AddChunk(ctx, &doc))
}

func TestEmbeddingStore_ListAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	_, err := es.AddChunks(ctx, []domain.EmbeddingChunk{
		chunk(domain.TextRef(1), 2, 1, 0),
		chunk(domain.TextRef(1), 0, 0, 1),
		chunk(domain.FileRef(1), 0, 1, 1),
	})
	require.NoError(t, err)

	byContent, err := es.ListByContent(ctx, domain.TextRef(1))
	require.NoError(t, err)
	require.Len(t, byContent, 2)
	assert.Equal(t, 0, byContent[0].ChunkIndex)
	assert.Equal(t, 2, byContent[1].ChunkIndex)
	assert.Equal(t, []float32{0, 1}, byContent[0].Vector)

	all, err := es.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.FileRef(1), all[2].Content)

	got, err := es.GetChunk(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "chunk text", got.Text)
	assert.True(t, got.CreatedAt.Equal(baseTime))

	_, err = es.GetChunk(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmbeddingStore_ForEachPagesInOrder(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	total := forEachPageSize + 10
	batch := make([]domain.EmbeddingChunk, total)
	for i := range batch {
		batch[i] = chunk(domain.TextRef(1), i, 1, float32(i))
	}
	_, err := es.AddChunks(ctx, batch)
	require.NoError(t, err)

	var last int64
	seen := 0
	err = es.ForEach(ctx, func(c *domain.EmbeddingChunk) error {
		assert.Greater(t, c.ID, last)
		last = c.ID
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, total, seen)

	stop := assert.AnError
	err = es.ForEach(ctx, func(*domain.EmbeddingChunk) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestEmbeddingStore_StorageBytes(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	c := chunk(domain.TextRef(1), 0, 1, 2, 3)
	c.Text = "héllo"
	require.NoError(t, es.AddChunk(ctx, &c))

	bytes, err := es.TotalStorageBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.StorageBytes(), bytes)
}

func TestEmbeddingStore_DeleteKeepsDimension(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	es := store.EmbeddingStore()

	_, err := es.AddChunks(ctx, []domain.EmbeddingChunk{
		chunk(domain.TextRef(1), 0, 1, 0),
		chunk(domain.TextRef(1), 1, 0, 1),
		chunk(domain.TextRef(2), 0, 1, 1),
	})
	require.NoError(t, err)

	ids, err := es.DeleteByContent(ctx, domain.TextRef(1))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = es.DeleteByContent(ctx, domain.TextRef(2))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	count, err := es.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	dim, err := es.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	_, err = es.AddChunks(ctx, []domain.EmbeddingChunk{chunk(domain.TextRef(3), 0, 1, 2, 3)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

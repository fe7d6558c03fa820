package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestCoordinator_BeginProcessing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addFile(ctx, "a.txt", 10)

	claimed, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, claimed.Status)

	_, err = f.coordinator.BeginProcessing(ctx, item.Ref())
	var transErr *domain.TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.StatusProcessing, transErr.From)
}

func TestCoordinator_BeginProcessing_Concurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coordinator.BeginProcessing(ctx, item.Ref())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
}

func TestCoordinator_BeginProcessing_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.coordinator.BeginProcessing(ctx, domain.TextRef(42))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.coordinator.BeginProcessing(ctx, domain.ContentRef{Kind: "video", ID: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCoordinator_CompleteProcessing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idx := newMockVectorIndex()
	f.coordinator.SetVectorIndex(idx)

	item := f.addText(ctx, "Note", "hello world")
	_, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	completed, err := f.coordinator.CompleteProcessing(ctx, item.Ref(), []domain.ChunkInput{
		{Text: "hello", Vector: []float32{1, 0, 0}},
		{Text: "world", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	chunks, err := f.embeddings.ListByContent(ctx, item.Ref())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "world", chunks[1].Text)
	assert.Equal(t, 2, idx.Count())
}

func TestCoordinator_CompleteProcessing_ZeroChunks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")
	_, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	completed, err := f.coordinator.CompleteProcessing(ctx, item.Ref(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
}

func TestCoordinator_CompleteProcessing_RequiresProcessing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")

	_, err := f.coordinator.CompleteProcessing(ctx, item.Ref(), []domain.ChunkInput{{Vector: []float32{1}}})
	var transErr *domain.TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.StatusPending, transErr.From)
	assert.Equal(t, domain.StatusCompleted, transErr.To)

	count, _ := f.embeddings.CountAll(ctx)
	assert.Zero(t, count)
}

func TestCoordinator_CompleteProcessing_DimensionMismatchFailsItem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.addText(ctx, "First", "one")
	f.complete(ctx, first.Ref(), []float32{1, 0, 0})

	second := f.addText(ctx, "Second", "two")
	_, err := f.coordinator.BeginProcessing(ctx, second.Ref())
	require.NoError(t, err)

	_, err = f.coordinator.CompleteProcessing(ctx, second.Ref(), []domain.ChunkInput{
		{Vector: []float32{1, 0, 0}},
		{Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	item, err := f.content.Get(ctx, second.Ref())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, item.Status)

	chunks, _ := f.embeddings.ListByContent(ctx, second.Ref())
	assert.Empty(t, chunks)
}

func TestCoordinator_CompleteProcessing_StoreErrorFailsItem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	coordinator := NewCoordinator(f.content, &failingEmbeddingStore{EmbeddingStore: f.embeddings, addErr: errStoreDown})

	item := f.addText(ctx, "Note", "hello")
	_, err := coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	_, err = coordinator.CompleteProcessing(ctx, item.Ref(), []domain.ChunkInput{{Vector: []float32{1}}})
	assert.ErrorIs(t, err, errStoreDown)

	got, _ := f.content.Get(ctx, item.Ref())
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestCoordinator_CompleteProcessing_InvalidChunk(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")
	_, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	_, err = f.coordinator.CompleteProcessing(ctx, item.Ref(), []domain.ChunkInput{
		{Index: intPtr(-1), Vector: []float32{1}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, _ := f.content.Get(ctx, item.Ref())
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestCoordinator_CompleteProcessing_DuplicateIndex(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")
	_, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	_, err = f.coordinator.CompleteProcessing(ctx, item.Ref(), []domain.ChunkInput{
		{Index: intPtr(3), Vector: []float32{1}},
		{Index: intPtr(3), Vector: []float32{1}},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateChunkIndex)
}

func TestCoordinator_CompleteProcessing_FailureDropsRecordedChunks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")
	_, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	_, err = f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Text: "hello", Vector: []float32{1, 0}})
	require.NoError(t, err)

	// The unindexed input lands on position 0, which RecordChunk already took.
	_, err = f.coordinator.CompleteProcessing(ctx, item.Ref(), []domain.ChunkInput{
		{Text: "hello again", Vector: []float32{1, 0}},
	})
	require.ErrorIs(t, err, domain.ErrDuplicateChunkIndex)

	got, err := f.content.Get(ctx, item.Ref())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	chunks, err := f.embeddings.ListByContent(ctx, item.Ref())
	require.NoError(t, err)
	assert.Empty(t, chunks)

	count, err := f.embeddings.CountAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCoordinator_FailProcessing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")
	_, err := f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)
	_, err = f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Vector: []float32{1, 1}})
	require.NoError(t, err)

	failed, err := f.coordinator.FailProcessing(ctx, item.Ref(), "provider timeout")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)

	chunks, _ := f.embeddings.ListByContent(ctx, item.Ref())
	assert.Empty(t, chunks)

	_, err = f.coordinator.FailProcessing(ctx, item.Ref(), "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCoordinator_FailProcessing_FromPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addFile(ctx, "a.bin", 5)

	failed, err := f.coordinator.FailProcessing(ctx, item.Ref(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
}

func TestCoordinator_RecordChunk(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	item := f.addText(ctx, "Note", "hello")

	_, err := f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Vector: []float32{1}})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.coordinator.BeginProcessing(ctx, item.Ref())
	require.NoError(t, err)

	first, err := f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Text: "a", Vector: []float32{1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 0, first.ChunkIndex)

	explicit, err := f.coordinator.RecordChunk(ctx, item.Ref(),
		domain.ChunkInput{Index: intPtr(5), Text: "b", Vector: []float32{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 5, explicit.ChunkIndex)

	next, err := f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Text: "c", Vector: []float32{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 6, next.ChunkIndex)

	_, err = f.coordinator.RecordChunk(ctx, item.Ref(),
		domain.ChunkInput{Index: intPtr(5), Vector: []float32{1, 1}})
	assert.ErrorIs(t, err, domain.ErrDuplicateChunkIndex)

	_, err = f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Vector: []float32{1, 1, 1}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCoordinator_Transition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	idx := newMockVectorIndex()
	f.coordinator.SetVectorIndex(idx)
	item := f.addText(ctx, "Note", "hello")

	_, err := f.coordinator.Transition(ctx, item.Ref(), domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.coordinator.Transition(ctx, item.Ref(), domain.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)

	_, err = f.coordinator.RecordChunk(ctx, item.Ref(), domain.ChunkInput{Vector: []float32{1, 0}})
	require.NoError(t, err)

	_, err = f.coordinator.Transition(ctx, item.Ref(), domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err = f.coordinator.Transition(ctx, item.Ref(), domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, idx.Count())

	_, err = f.coordinator.Transition(ctx, item.Ref(), domain.StatusFailed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.coordinator.Transition(ctx, item.Ref(), "archived")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

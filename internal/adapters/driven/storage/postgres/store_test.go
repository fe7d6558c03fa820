package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// dsnEnv names the database used by these tests. Tests are skipped without it.
// Every table is truncated between tests.
const dsnEnv = "KBASE_TEST_POSTGRES_DSN"

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.pool.Exec(ctx, `
		TRUNCATE file_uploads, text_content, embedding_chunks, corpus_meta,
			usage_stats, scheduled_tasks, task_results RESTART IDENTITY
	`)
	require.NoError(t, err)
	return store
}

func newText(kind domain.ContentKind, title string, offset time.Duration) *domain.ContentItem {
	at := baseTime.Add(offset)
	return &domain.ContentItem{
		Kind:      kind,
		Status:    domain.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
		Text: &domain.TextAttributes{
			Title:       title,
			Body:        "body of " + title,
			ContentHash: domain.HashContent("body of " + title),
		},
	}
}

func TestNewStore_EmptyDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}

func TestContentStore_InsertGetList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.ContentStore()

	text := newText(domain.KindText, "first", 0)
	doc := newText(domain.KindDocument, "second", time.Hour)
	require.NoError(t, repo.Insert(ctx, text))
	require.NoError(t, repo.Insert(ctx, doc))
	assert.Equal(t, int64(1), text.ID)
	assert.Equal(t, int64(2), doc.ID)

	got, err := repo.Get(ctx, doc.Ref())
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text.Title)
	assert.True(t, got.CreatedAt.Equal(doc.CreatedAt))

	_, err = repo.Get(ctx, domain.TextRef(doc.ID))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := repo.List(ctx, domain.KindText)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, doc.ID, all[0].ID)

	docs, err := repo.List(ctx, domain.KindDocument)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestContentStore_UpdateStatusConcurrentClaims(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.ContentStore()

	item := newText(domain.KindText, "contended", 0)
	require.NoError(t, repo.Insert(ctx, item))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateStatus(ctx, item.Ref(),
				[]domain.ProcessingStatus{domain.StatusPending}, domain.StatusProcessing, baseTime.Add(time.Minute))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)

	clamped, err := repo.UpdateStatus(ctx, item.Ref(), nil, domain.StatusFailed, baseTime.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, clamped.UpdatedAt.Equal(item.CreatedAt))
}

func TestEmbeddingStore_DimensionAndAtomicity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	es := store.EmbeddingStore()

	_, err := es.AddChunks(ctx, []domain.EmbeddingChunk{
		{Content: domain.TextRef(1), ChunkIndex: 0, Text: "a", Vector: []float32{1, 0}, CreatedAt: baseTime},
		{Content: domain.TextRef(1), ChunkIndex: 1, Text: "b", Vector: []float32{1, 0, 0}, CreatedAt: baseTime},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	dim, err := es.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	stored, err := es.AddChunks(ctx, []domain.EmbeddingChunk{
		{Content: domain.TextRef(1), ChunkIndex: 0, Text: "a", Vector: []float32{1, 0}, CreatedAt: baseTime},
		{Content: domain.TextRef(1), ChunkIndex: 1, Text: "b", Vector: []float32{0, 1}, CreatedAt: baseTime},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	dup := domain.EmbeddingChunk{Content: domain.TextRef(1), ChunkIndex: 1, Text: "c", Vector: []float32{1, 1}}
	assert.ErrorIs(t, es.AddChunk(ctx, &dup), domain.ErrDuplicateChunkIndex)

	chunks, err := es.ListByContent(ctx, domain.TextRef(1))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{0, 1}, chunks[1].Vector)

	bytes, err := es.TotalStorageBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2*(8+1)), bytes)

	ids, err := es.DeleteByContent(ctx, domain.TextRef(1))
	require.NoError(t, err)
	assert.Equal(t, []int64{stored[0].ID, stored[1].ID}, ids)

	dim, err = es.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
}

func TestVectorIndex_Search(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.EmbeddingStore().AddChunks(ctx, []domain.EmbeddingChunk{
		{Content: domain.TextRef(1), ChunkIndex: 0, Text: "x", Vector: []float32{1, 0}, CreatedAt: baseTime},
		{Content: domain.TextRef(1), ChunkIndex: 1, Text: "y", Vector: []float32{0, 1}, CreatedAt: baseTime},
		{Content: domain.TextRef(1), ChunkIndex: 2, Text: "xy", Vector: []float32{1, 1}, CreatedAt: baseTime},
	})
	require.NoError(t, err)

	index := store.VectorIndex()
	assert.Equal(t, 3, index.Count())

	hits, err := index.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, int64(3), hits[1].ChunkID)
}

func TestUsageAndSchedulerStores(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	us := store.UsageStore()
	require.NoError(t, us.SaveSnapshot(ctx, domain.UsageStat{Date: "2025-03-01", TextEntries: 1, CreatedAt: baseTime}))
	require.NoError(t, us.SaveSnapshot(ctx, domain.UsageStat{Date: "2025-03-01", TextEntries: 3, CreatedAt: baseTime}))
	stats, err := us.ListSnapshots(ctx, "2025-03-01", "2025-03-07")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].TextEntries)

	ss := store.SchedulerStore()
	task := &domain.ScheduledTask{
		ID: domain.TaskIDProcessQueue, Name: "Process Queue",
		Interval: 30 * time.Second, NextRun: baseTime, Enabled: true,
	}
	require.NoError(t, ss.SaveTask(ctx, task))
	got, err := ss.GetTask(ctx, domain.TaskIDProcessQueue)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 30*time.Second, got.Interval)
	assert.True(t, got.LastRun.IsZero())

	missing, err := ss.GetTask(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	for i := 0; i < 3; i++ {
		require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: baseTime.Add(time.Duration(i) * time.Minute),
			EndedAt:   baseTime.Add(time.Duration(i) * time.Minute),
			Success:   true,
			Completed: i,
			Chunks:    i * 4,
		}))
	}
	require.NoError(t, ss.PruneHistory(ctx, 2))
	history, err := ss.GetTaskHistory(ctx, task.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].StartedAt.Equal(baseTime.Add(2*time.Minute)))
	assert.Equal(t, 2, history[0].Completed)
	assert.Equal(t, 8, history[0].Chunks)
	assert.Empty(t, history[0].SnapshotDate)
}

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func queueRun(offset time.Duration, completed int) *domain.TaskResult {
	started := baseTime.Add(offset)
	return &domain.TaskResult{
		TaskID:    domain.TaskIDProcessQueue,
		StartedAt: started,
		EndedAt:   started.Add(2 * time.Second),
		Success:   true,
		Completed: completed,
	}
}

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	task := &domain.ScheduledTask{
		ID:          domain.TaskIDProcessQueue,
		Name:        "Process queue",
		Interval:    30 * time.Second,
		LastRun:     baseTime,
		NextRun:     baseTime.Add(30 * time.Second),
		LastSuccess: baseTime,
		Enabled:     true,
	}
	require.NoError(t, ss.SaveTask(ctx, task))

	got, err := ss.GetTask(ctx, domain.TaskIDProcessQueue)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, 30*time.Second, got.Interval)
	assert.True(t, got.LastRun.Equal(baseTime))
	assert.True(t, got.NextRun.Equal(baseTime.Add(30*time.Second)))
	assert.True(t, got.Enabled)
	assert.Empty(t, got.LastError)
}

func TestSchedulerStore_GetTaskMissing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	got, err := store.SchedulerStore().GetTask(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_SaveTaskReplaces(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	task := &domain.ScheduledTask{ID: domain.TaskIDUsageSnapshot, Name: "Usage snapshot", Interval: time.Hour, Enabled: true}
	require.NoError(t, ss.SaveTask(ctx, task))

	task.Enabled = false
	task.LastError = "usage store unavailable"
	task.LastRun = baseTime
	require.NoError(t, ss.SaveTask(ctx, task))

	got, err := ss.GetTask(ctx, domain.TaskIDUsageSnapshot)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "usage store unavailable", got.LastError)
	assert.True(t, got.LastSuccess.IsZero())
	assert.True(t, got.LastRun.Equal(baseTime))
}

func TestSchedulerStore_SaveTaskValidates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ss := store.SchedulerStore()

	assert.ErrorIs(t, ss.SaveTask(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, ss.SaveTask(context.Background(), &domain.ScheduledTask{}), domain.ErrValidation)
}

func TestSchedulerStore_ListAndDeleteTasks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	for _, id := range []string{domain.TaskIDUsageSnapshot, domain.TaskIDProcessQueue} {
		require.NoError(t, ss.SaveTask(ctx, &domain.ScheduledTask{ID: id, Name: id, Interval: time.Minute, Enabled: true}))
	}

	tasks, err := ss.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskIDProcessQueue, tasks[0].ID)

	require.NoError(t, ss.DeleteTask(ctx, domain.TaskIDProcessQueue))
	tasks, err = ss.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskIDUsageSnapshot, tasks[0].ID)
}

func TestSchedulerStore_RecordProcessReport(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	run := queueRun(0, 3)
	run.Failed = 1
	run.Skipped = 2
	run.Chunks = 11
	require.NoError(t, ss.RecordResult(ctx, run))

	history, err := ss.GetTaskHistory(ctx, domain.TaskIDProcessQueue, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, 3, got.Completed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 2, got.Skipped)
	assert.Equal(t, 11, got.Chunks)
	assert.Equal(t, 6, got.ItemsHandled())
	assert.Empty(t, got.SnapshotDate)
	assert.True(t, got.StartedAt.Equal(baseTime))
	assert.True(t, got.EndedAt.Equal(baseTime.Add(2*time.Second)))
}

func TestSchedulerStore_RecordSnapshotRun(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID:       domain.TaskIDUsageSnapshot,
		StartedAt:    baseTime,
		EndedAt:      baseTime,
		Success:      true,
		SnapshotDate: "2025-03-01",
	}))
	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID:    domain.TaskIDUsageSnapshot,
		StartedAt: baseTime.Add(time.Hour),
		EndedAt:   baseTime.Add(time.Hour),
		Error:     "usage store unavailable",
	}))

	history, err := ss.GetTaskHistory(ctx, domain.TaskIDUsageSnapshot, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.Equal(t, "usage store unavailable", history[0].Error)
	assert.Empty(t, history[0].SnapshotDate)
	assert.Equal(t, "2025-03-01", history[1].SnapshotDate)
}

func TestSchedulerStore_RecordResultNil(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SchedulerStore().RecordResult(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_HistoryNewestFirstWithLimit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	for i := range 5 {
		require.NoError(t, ss.RecordResult(ctx, queueRun(time.Duration(i)*time.Minute, i)))
	}
	// Same start time as the newest run; insertion order breaks the tie.
	require.NoError(t, ss.RecordResult(ctx, queueRun(4*time.Minute, 40)))

	history, err := ss.GetTaskHistory(ctx, domain.TaskIDProcessQueue, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 40, history[0].Completed)
	assert.Equal(t, 4, history[1].Completed)
	assert.Equal(t, 3, history[2].Completed)

	other, err := ss.GetTaskHistory(ctx, domain.TaskIDUsageSnapshot, 3)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSchedulerStore_PruneHistoryPerTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	for i := range 4 {
		require.NoError(t, ss.RecordResult(ctx, queueRun(time.Duration(i)*time.Minute, i)))
	}
	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID:       domain.TaskIDUsageSnapshot,
		StartedAt:    baseTime,
		EndedAt:      baseTime,
		Success:      true,
		SnapshotDate: "2025-03-01",
	}))

	require.NoError(t, ss.PruneHistory(ctx, 2))

	queue, err := ss.GetTaskHistory(ctx, domain.TaskIDProcessQueue, 0)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, 3, queue[0].Completed)
	assert.Equal(t, 2, queue[1].Completed)

	snapshots, err := ss.GetTaskHistory(ctx, domain.TaskIDUsageSnapshot, 0)
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestSchedulerStore_ZeroTimesStoredAsNull(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	ss := store.SchedulerStore()

	require.NoError(t, ss.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDProcessQueue, Name: "q", Interval: time.Minute}))

	var lastRun, nextRun any
	row := store.db.QueryRowContext(ctx, `SELECT last_run, next_run FROM scheduled_tasks WHERE id = ?`, domain.TaskIDProcessQueue)
	require.NoError(t, row.Scan(&lastRun, &nextRun))
	assert.Nil(t, lastRun)
	assert.Nil(t, nextRun)

	got, err := ss.GetTask(ctx, domain.TaskIDProcessQueue)
	require.NoError(t, err)
	assert.True(t, got.LastRun.IsZero())
	assert.True(t, got.NextRun.IsZero())
	assert.False(t, got.Enabled)
}

package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestStatsDashboard(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	ctx := context.Background()
	_, err := ts.content.CreateText(ctx, domain.NewText{Title: "One", Body: "first note"})
	require.NoError(t, err)
	_, err = ts.content.CreateText(ctx, domain.NewText{Title: "Two", Body: "second note"})
	require.NoError(t, err)

	out, err := execute(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Dashboard")
	assert.Contains(t, out, "Text entries:     2")
	assert.Contains(t, out, "Queue:            2")
	assert.Contains(t, out, "Recent uploads:   2")
	assert.Contains(t, out, "Daily uploads (UTC):")
	assert.Contains(t, out, domain.DayOf(time.Now()))
}

func TestStatsDashboard_JSON(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	ctx := context.Background()
	item, err := ts.content.CreateText(ctx, domain.NewText{Title: "One", Body: "an apple"})
	require.NoError(t, err)
	_, err = ts.pipeline.Process(ctx, item.Ref())
	require.NoError(t, err)

	out, err := execute(t, "", "stats", "dashboard", "--json")
	require.NoError(t, err)

	var stats domain.DashboardStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TotalTextEntries)
	assert.Equal(t, 1, stats.TotalEmbeddings)
	assert.Zero(t, stats.ProcessingQueueSize)
	assert.Len(t, stats.DailyUsage, 7)
}

func TestStatsQueue(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := execute(t, "", "stats", "queue")
	require.NoError(t, err)
	assert.Contains(t, out, "Queue is empty.")

	ctx := context.Background()
	_, err = ts.content.CreateText(ctx, domain.NewText{Title: "Waiting", Body: "body"})
	require.NoError(t, err)
	done, err := ts.content.CreateText(ctx, domain.NewText{Title: "Done", Body: "other body"})
	require.NoError(t, err)
	_, err = ts.pipeline.Process(ctx, done.Ref())
	require.NoError(t, err)

	out, err = execute(t, "", "stats", "queue")
	require.NoError(t, err)
	assert.Contains(t, out, "text:1")
	assert.Contains(t, out, "Waiting")
	assert.NotContains(t, out, "Done")
	assert.Contains(t, out, "Total: 1 queued")
}

func TestStatsQueue_JSON(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := ts.content.CreateText(context.Background(), domain.NewText{Title: "Waiting", Body: "body"})
	require.NoError(t, err)

	out, err := execute(t, "", "stats", "queue", "--json")
	require.NoError(t, err)

	var queue []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, "text", queue[0]["type"])
	assert.Equal(t, "pending", queue[0]["status"])
}

func TestStatsSnapshotAndHistory(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := execute(t, "", "stats", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No snapshots stored.")

	_, err = ts.content.CreateText(context.Background(), domain.NewText{Title: "One", Body: "body"})
	require.NoError(t, err)

	today := domain.DayOf(time.Now())
	out, err = execute(t, "", "stats", "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshot "+today+": 0 files, 1 texts")

	out, err = execute(t, "", "stats", "history", "--days", "3")
	require.NoError(t, err)
	assert.Contains(t, out, today)

	history, err := ts.usage.ListSnapshots(context.Background(), today, today)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].TextEntries)
}

func TestStatsSnapshot_Date(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := execute(t, "", "stats", "snapshot", "--date", "2024-02-29")
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshot 2024-02-29: 0 files, 0 texts")

	_, err = execute(t, "", "stats", "snapshot", "--date", "29/02/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected YYYY-MM-DD")
}

func TestStats_NotConfigured(t *testing.T) {
	SetServices(nil)
	defer resetFlags()

	for _, args := range [][]string{
		{"stats"},
		{"stats", "queue"},
		{"stats", "snapshot"},
		{"stats", "history"},
	} {
		_, err := execute(t, "", args...)
		require.ErrorIs(t, err, errNoDashboardService, "args %v", args)
	}
}

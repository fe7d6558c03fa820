package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestUsageStore_SaveAndList(t *testing.T) {
	store := NewUsageStore()
	ctx := context.Background()

	for _, date := range []string{"2025-03-03", "2025-03-01", "2025-02-27"} {
		require.NoError(t, store.SaveSnapshot(ctx, domain.UsageStat{Date: date, FilesUploaded: 1}))
	}
	require.NoError(t, store.SaveSnapshot(ctx, domain.UsageStat{Date: "2025-03-01", FilesUploaded: 5}))

	stats, err := store.ListSnapshots(ctx, "2025-03-01", "2025-03-03")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "2025-03-01", stats[0].Date)
	assert.Equal(t, 5, stats[0].FilesUploaded)
	assert.Equal(t, "2025-03-03", stats[1].Date)
}

func TestUsageStore_SaveSnapshot_RequiresDate(t *testing.T) {
	err := NewUsageStore().SaveSnapshot(context.Background(), domain.UsageStat{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DashboardService aggregates queue and corpus figures.
type DashboardService interface {
	// ProcessingQueue lists pending and processing items, oldest first.
	ProcessingQueue(ctx context.Context) ([]domain.QueueItem, error)

	// Stats computes the dashboard figures.
	Stats(ctx context.Context) (*domain.DashboardStats, error)

	// Snapshot computes and stores the usage rollup for the UTC day containing day.
	Snapshot(ctx context.Context, day time.Time) (*domain.UsageStat, error)

	// History returns stored rollups for the trailing number of days.
	History(ctx context.Context, days int) ([]domain.UsageStat, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// UsageStore persists daily usage rollups keyed by UTC date.
type UsageStore interface {
	// SaveSnapshot creates or replaces the rollup for stat.Date.
	SaveSnapshot(ctx context.Context, stat domain.UsageStat) error

	// ListSnapshots returns rollups with from <= date <= to, oldest first.
	// Dates use domain.DateLayout.
	ListSnapshots(ctx context.Context, from, to string) ([]domain.UsageStat, error)
}

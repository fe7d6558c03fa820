package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure UsageStore implements the interface.
var _ driven.UsageStore = (*UsageStore)(nil)

// UsageStore is an in-memory implementation of driven.UsageStore.
type UsageStore struct {
	mu    sync.RWMutex
	stats map[string]domain.UsageStat
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{stats: make(map[string]domain.UsageStat)}
}

// SaveSnapshot creates or replaces the rollup for stat.Date.
func (s *UsageStore) SaveSnapshot(_ context.Context, stat domain.UsageStat) error {
	if stat.Date == "" {
		return &domain.ValidationError{Field: "date", Reason: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stat.Date] = stat
	return nil
}

// ListSnapshots returns rollups with from <= date <= to, oldest first.
func (s *UsageStore) ListSnapshots(_ context.Context, from, to string) ([]domain.UsageStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.UsageStat
	for date, stat := range s.stats {
		if date >= from && date <= to {
			out = append(out, stat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

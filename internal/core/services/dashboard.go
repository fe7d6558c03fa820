package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure DashboardService implements the interface.
var _ driving.DashboardService = (*DashboardService)(nil)

// DashboardService computes queue and corpus figures on every call.
type DashboardService struct {
	content    driven.ContentRepository
	embeddings driven.EmbeddingStore
	usage      driven.UsageStore
	gate       *CorpusGate
	opts       domain.DashboardOptions
	now        func() time.Time
}

// NewDashboardService creates a dashboard service.
// The usage store is optional; without it Snapshot and History are unavailable.
func NewDashboardService(
	content driven.ContentRepository,
	embeddings driven.EmbeddingStore,
	usage driven.UsageStore,
	opts domain.DashboardOptions,
) *DashboardService {
	defaults := domain.DefaultDashboardOptions()
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = defaults.RecentWindow
	}
	if opts.Days <= 0 {
		opts.Days = defaults.Days
	}
	return &DashboardService{
		content:    content,
		embeddings: embeddings,
		usage:      usage,
		opts:       opts,
		now:        nowUTC,
	}
}

// SetCorpusGate sets the gate shared with the writing services.
// Without one, Stats and Snapshot may see a completion half applied.
func (s *DashboardService) SetCorpusGate(g *CorpusGate) {
	s.gate = g
}

// SetClock replaces the clock used for windows and snapshots.
func (s *DashboardService) SetClock(now func() time.Time) {
	s.now = now
}

// ProcessingQueue lists pending and processing items, oldest first.
func (s *DashboardService) ProcessingQueue(ctx context.Context) ([]domain.QueueItem, error) {
	items, err := s.content.ListByStatus(ctx, domain.QueuedStatuses()...)
	if err != nil {
		return nil, fmt.Errorf("listing queued items: %w", err)
	}
	return buildQueue(items), nil
}

// corpusView is one consistent read of both stores.
type corpusView struct {
	files          []domain.ContentItem
	texts          []domain.ContentItem
	embeddingCount int
	embeddingBytes int64

	// embeddingsOnDay counts chunks created on the requested day, if any.
	embeddingsOnDay int
}

// readCorpus reads the stores while no completion, failure or reset is in flight.
// With a non-empty day it scans the chunks to count those created that day.
func (s *DashboardService) readCorpus(ctx context.Context, day string) (*corpusView, error) {
	defer s.gate.enterSnapshot()()

	view := &corpusView{}
	var err error
	if view.files, err = s.content.List(ctx, domain.KindFile); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	if view.texts, err = s.content.List(ctx, domain.KindText); err != nil {
		return nil, fmt.Errorf("listing text entries: %w", err)
	}

	if day != "" {
		err = s.embeddings.ForEach(ctx, func(chunk *domain.EmbeddingChunk) error {
			view.embeddingCount++
			view.embeddingBytes += chunk.StorageBytes()
			if domain.DayOf(chunk.CreatedAt) == day {
				view.embeddingsOnDay++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning embeddings: %w", err)
		}
		return view, nil
	}

	if view.embeddingCount, err = s.embeddings.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("counting embeddings: %w", err)
	}
	if view.embeddingBytes, err = s.embeddings.TotalStorageBytes(ctx); err != nil {
		return nil, fmt.Errorf("summing embedding storage: %w", err)
	}
	return view, nil
}

// Stats computes the dashboard figures from one consistent read of the stores.
func (s *DashboardService) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	view, err := s.readCorpus(ctx, "")
	if err != nil {
		return nil, err
	}
	files, texts := view.files, view.texts

	now := s.now().UTC()
	all := make([]domain.ContentItem, 0, len(files)+len(texts))
	all = append(all, files...)
	all = append(all, texts...)

	var queued []domain.ContentItem
	contentBytes := int64(0)
	recent := 0
	recentSince := now.Add(-s.opts.RecentWindow)
	for i := range all {
		item := &all[i]
		contentBytes += item.StorageBytes()
		if item.Status.IsQueued() {
			queued = append(queued, *item)
		}
		if !item.CreatedAt.Before(recentSince) {
			recent++
		}
	}

	stats := &domain.DashboardStats{
		TotalFiles:          len(files),
		TotalTextEntries:    len(texts),
		TotalEmbeddings:     view.embeddingCount,
		TotalStorageMB:      domain.BytesToMB(contentBytes + view.embeddingBytes),
		ProcessingQueueSize: len(buildQueue(queued)),
		RecentUploads:       recent,
		DailyUsage:          dailySeries(all, now, s.opts.Days),
	}

	logger.Debug("Dashboard: %d files, %d texts, %d embeddings, queue %d",
		stats.TotalFiles, stats.TotalTextEntries, stats.TotalEmbeddings, stats.ProcessingQueueSize)
	return stats, nil
}

// Snapshot computes and stores the usage rollup for the UTC day containing day.
func (s *DashboardService) Snapshot(ctx context.Context, day time.Time) (*domain.UsageStat, error) {
	if s.usage == nil {
		return nil, fmt.Errorf("usage snapshots: %w", domain.ErrNotImplemented)
	}

	date := domain.DayOf(day)
	stat := domain.UsageStat{Date: date, CreatedAt: s.now().UTC()}

	view, err := s.readCorpus(ctx, date)
	if err != nil {
		return nil, err
	}

	totalBytes := view.embeddingBytes
	var processedBytes int64
	for _, items := range [][]domain.ContentItem{view.files, view.texts} {
		for i := range items {
			item := &items[i]
			totalBytes += item.StorageBytes()
			if domain.DayOf(item.CreatedAt) == date {
				if item.Kind == domain.KindFile {
					stat.FilesUploaded++
				} else {
					stat.TextEntries++
				}
			}
			if item.Status == domain.StatusCompleted && domain.DayOf(item.UpdatedAt) == date {
				processedBytes += item.StorageBytes()
			}
		}
	}
	stat.EmbeddingsCreated = view.embeddingsOnDay

	stat.DataProcessedMB = domain.BytesToMB(processedBytes)
	stat.StorageUsedMB = domain.BytesToMB(totalBytes)

	if err := s.usage.SaveSnapshot(ctx, stat); err != nil {
		return nil, fmt.Errorf("saving usage snapshot: %w", err)
	}
	logger.Info("Usage snapshot for %s: %d files, %d texts, %d embeddings",
		date, stat.FilesUploaded, stat.TextEntries, stat.EmbeddingsCreated)
	return &stat, nil
}

// History returns stored rollups for the trailing number of days.
func (s *DashboardService) History(ctx context.Context, days int) ([]domain.UsageStat, error) {
	if s.usage == nil {
		return nil, fmt.Errorf("usage history: %w", domain.ErrNotImplemented)
	}
	if days <= 0 {
		days = s.opts.Days
	}
	now := s.now().UTC()
	from := domain.DayOf(now.AddDate(0, 0, -(days - 1)))
	return s.usage.ListSnapshots(ctx, from, domain.DayOf(now))
}

// buildQueue orders queued items by creation time, then kind, then ID.
func buildQueue(items []domain.ContentItem) []domain.QueueItem {
	queue := make([]domain.QueueItem, 0, len(items))
	for i := range items {
		item := &items[i]
		if !item.Status.IsQueued() {
			continue
		}
		queue = append(queue, domain.QueueItem{
			ID:        item.ID,
			Kind:      item.Kind,
			Name:      item.DisplayName(),
			Status:    item.Status,
			CreatedAt: item.CreatedAt,
		})
	}
	sort.Slice(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return queue
}

// dailySeries buckets uploads into the trailing UTC days ending today, oldest first.
func dailySeries(items []domain.ContentItem, now time.Time, days int) []domain.DailyUsage {
	series := make([]domain.DailyUsage, days)
	index := make(map[string]int, days)
	bytes := make([]int64, days)
	for i := 0; i < days; i++ {
		date := domain.DayOf(now.AddDate(0, 0, i-(days-1)))
		series[i] = domain.DailyUsage{Date: date}
		index[date] = i
	}

	for i := range items {
		pos, ok := index[domain.DayOf(items[i].CreatedAt)]
		if !ok {
			continue
		}
		series[pos].Uploads++
		bytes[pos] += items[i].StorageBytes()
	}
	for i := range series {
		series[i].StorageMB = domain.BytesToMB(bytes[i])
	}
	return series
}

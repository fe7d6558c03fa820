package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

var (
	_ driving.SearchService    = (*mockSearchService)(nil)
	_ driving.ContentService   = (*mockContentService)(nil)
	_ driving.DashboardService = (*mockDashboardService)(nil)
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.opts = opts
	return m.results, m.err
}

// mockContentService is a mock implementation of driving.ContentService.
type mockContentService struct {
	items []domain.ContentItem
	err   error
}

func (m *mockContentService) CreateFile(_ context.Context, _ domain.NewFile) (*domain.ContentItem, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockContentService) CreateText(_ context.Context, _ domain.NewText) (*domain.ContentItem, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockContentService) Get(_ context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.items {
		if m.items[i].Ref() == ref {
			item := m.items[i]
			return &item, nil
		}
	}
	return nil, &domain.NotFoundError{Ref: ref}
}

func (m *mockContentService) List(_ context.Context, kind domain.ContentKind) ([]domain.ContentItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ContentItem
	for i := range m.items {
		if m.items[i].Kind.Family() == kind.Family() {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *mockContentService) FindDuplicates(_ context.Context, _ string) ([]domain.ContentItem, error) {
	return nil, nil
}

func (m *mockContentService) ResetToPending(_ context.Context, _ domain.ContentRef) (*domain.ContentItem, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockContentService) ForceStatus(
	_ context.Context, _ domain.ContentRef, _ domain.ProcessingStatus,
) (*domain.ContentItem, error) {
	return nil, domain.ErrNotImplemented
}

// mockDashboardService is a mock implementation of driving.DashboardService.
type mockDashboardService struct {
	queue []domain.QueueItem
	stats *domain.DashboardStats
	err   error
}

func (m *mockDashboardService) ProcessingQueue(_ context.Context) ([]domain.QueueItem, error) {
	return m.queue, m.err
}

func (m *mockDashboardService) Stats(_ context.Context) (*domain.DashboardStats, error) {
	return m.stats, m.err
}

func (m *mockDashboardService) Snapshot(_ context.Context, _ time.Time) (*domain.UsageStat, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockDashboardService) History(_ context.Context, _ int) ([]domain.UsageStat, error) {
	return nil, domain.ErrNotImplemented
}

var testTime = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func textItem(id int64, title, body string) domain.ContentItem {
	return domain.ContentItem{
		ID:        id,
		Kind:      domain.KindText,
		Status:    domain.StatusPending,
		CreatedAt: testTime,
		UpdatedAt: testTime,
		Text:      &domain.TextAttributes{Title: title, Body: body},
	}
}

func fileItem(id int64, name string) domain.ContentItem {
	return domain.ContentItem{
		ID:        id,
		Kind:      domain.KindFile,
		Status:    domain.StatusCompleted,
		CreatedAt: testTime,
		UpdatedAt: testTime,
		File: &domain.FileAttributes{
			Filename:     fmt.Sprintf("%d.pdf", id),
			OriginalName: name,
			Size:         2048,
			MIMEType:     "application/pdf",
			StoragePath:  fmt.Sprintf("/data/%d.pdf", id),
		},
	}
}

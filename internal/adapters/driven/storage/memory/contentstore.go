package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentRepository = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentRepository.
// Files and text entries keep separate ID sequences.
type ContentStore struct {
	mu     sync.RWMutex
	files  map[int64]*domain.ContentItem
	texts  map[int64]*domain.ContentItem
	nextID map[domain.ContentKind]int64
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		files: make(map[int64]*domain.ContentItem),
		texts: make(map[int64]*domain.ContentItem),
		nextID: map[domain.ContentKind]int64{
			domain.KindFile: 1,
			domain.KindText: 1,
		},
	}
}

func (s *ContentStore) family(kind domain.ContentKind) map[int64]*domain.ContentItem {
	if kind.Family() == domain.KindFile {
		return s.files
	}
	return s.texts
}

// Insert stores a new item and assigns its ID within its family.
func (s *ContentStore) Insert(_ context.Context, item *domain.ContentItem) error {
	if !item.Kind.IsValid() {
		return &domain.ValidationError{Field: "kind", Reason: "unknown content kind " + string(item.Kind)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	family := item.Kind.Family()
	item.ID = s.nextID[family]
	s.nextID[family]++
	s.family(family)[item.ID] = item.Clone()
	return nil
}

// Get retrieves an item by reference. The kind must match exactly.
func (s *ContentStore) Get(_ context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.family(ref.Kind)[ref.ID]
	if !ok || item.Kind != ref.Kind {
		return nil, &domain.NotFoundError{Ref: ref}
	}
	return item.Clone(), nil
}

// List returns items of a kind, newest first.
func (s *ContentStore) List(_ context.Context, kind domain.ContentKind) ([]domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.ContentItem
	for _, item := range s.family(kind) {
		if !kind.Covers(item.Kind) {
			continue
		}
		items = append(items, *item.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

// ListByStatus returns items of both families in any of the given states, oldest first.
func (s *ContentStore) ListByStatus(
	_ context.Context,
	statuses ...domain.ProcessingStatus,
) ([]domain.ContentItem, error) {
	want := make(map[domain.ProcessingStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.ContentItem
	for _, family := range []map[int64]*domain.ContentItem{s.files, s.texts} {
		for _, item := range family {
			if want[item.Status] {
				items = append(items, *item.Clone())
			}
		}
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return items, nil
}

// FindByHash returns text items whose content hash equals hash, lowest ID first.
func (s *ContentStore) FindByHash(_ context.Context, hash string) ([]domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.ContentItem
	for _, item := range s.texts {
		if item.Text != nil && item.Text.ContentHash == hash {
			items = append(items, *item.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// UpdateStatus sets the status if the current one is expected.
func (s *ContentStore) UpdateStatus(
	_ context.Context,
	ref domain.ContentRef,
	expected []domain.ProcessingStatus,
	next domain.ProcessingStatus,
	at time.Time,
) (*domain.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.family(ref.Kind)[ref.ID]
	if !ok || item.Kind != ref.Kind {
		return nil, &domain.NotFoundError{Ref: ref}
	}
	if len(expected) > 0 && !containsStatus(expected, item.Status) {
		return nil, &domain.TransitionError{Ref: ref, From: item.Status, To: next}
	}

	if at.Before(item.CreatedAt) {
		at = item.CreatedAt
	}
	item.Status = next
	item.UpdatedAt = at
	return item.Clone(), nil
}

func containsStatus(list []domain.ProcessingStatus, status domain.ProcessingStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// ContentRepository persists file and text items.
// Files and text entries live in separate families with independent ID sequences.
type ContentRepository interface {
	// Insert stores a new item and assigns its ID within the item's family.
	Insert(ctx context.Context, item *domain.ContentItem) error

	// Get retrieves an item by reference.
	// Returns a NotFoundError if the item does not exist or has a different kind.
	Get(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error)

	// List returns items of a kind, newest first (created_at desc, then id desc).
	// KindText returns the whole text family; KindDocument only documents.
	List(ctx context.Context, kind domain.ContentKind) ([]domain.ContentItem, error)

	// ListByStatus returns items of both families in any of the given states.
	ListByStatus(ctx context.Context, statuses ...domain.ProcessingStatus) ([]domain.ContentItem, error)

	// FindByHash returns text items whose content hash equals hash.
	FindByHash(ctx context.Context, hash string) ([]domain.ContentItem, error)

	// UpdateStatus atomically sets the status to next if the current status is
	// one of expected. An empty expected list matches any status.
	// updated_at becomes at, clamped to be no earlier than created_at.
	// Returns a TransitionError carrying the actual status when the check fails.
	UpdateStatus(
		ctx context.Context,
		ref domain.ContentRef,
		expected []domain.ProcessingStatus,
		next domain.ProcessingStatus,
		at time.Time,
	) (*domain.ContentItem, error)
}

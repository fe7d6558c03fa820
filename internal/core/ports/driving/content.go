package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// ContentService registers and reads content items.
type ContentService interface {
	// CreateFile registers an uploaded file as a pending item.
	CreateFile(ctx context.Context, input domain.NewFile) (*domain.ContentItem, error)

	// CreateText registers a text or document entry as a pending item.
	CreateText(ctx context.Context, input domain.NewText) (*domain.ContentItem, error)

	// Get retrieves an item by reference.
	Get(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error)

	// List returns items of a kind, newest first.
	List(ctx context.Context, kind domain.ContentKind) ([]domain.ContentItem, error)

	// FindDuplicates returns text items whose body hashes the same as body.
	FindDuplicates(ctx context.Context, body string) ([]domain.ContentItem, error)

	// ResetToPending removes an item's chunks and returns it to pending.
	// This is an administrative override, not a state machine transition.
	ResetToPending(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error)

	// ForceStatus sets any status without checking the state machine.
	// Moving away from completed removes the item's chunks.
	ForceStatus(ctx context.Context, ref domain.ContentRef, status domain.ProcessingStatus) (*domain.ContentItem, error)
}

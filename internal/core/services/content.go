package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure ContentService implements the interface.
var _ driving.ContentService = (*ContentService)(nil)

// ContentService registers and reads content items.
type ContentService struct {
	content driven.ContentRepository
	purger  chunkPurger
	gate    *CorpusGate
	now     func() time.Time
}

// NewContentService creates a new content service.
func NewContentService(content driven.ContentRepository, embeddings driven.EmbeddingStore) *ContentService {
	return &ContentService{
		content: content,
		purger:  chunkPurger{embeddings: embeddings},
		now:     nowUTC,
	}
}

// SetVectorIndex sets the index that administrative resets prune.
func (s *ContentService) SetVectorIndex(idx driven.VectorIndex) {
	s.purger.vectorIndex = idx
}

// SetCorpusGate sets the gate shared with the dashboard.
func (s *ContentService) SetCorpusGate(g *CorpusGate) {
	s.gate = g
}

// SetClock replaces the clock used for timestamps.
func (s *ContentService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateFile registers an uploaded file as a pending item.
func (s *ContentService) CreateFile(ctx context.Context, input domain.NewFile) (*domain.ContentItem, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	item := &domain.ContentItem{
		Kind:      domain.KindFile,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		File: &domain.FileAttributes{
			Filename:     input.Filename,
			OriginalName: input.OriginalName,
			Size:         input.Size,
			MIMEType:     input.MIMEType,
			StoragePath:  input.StoragePath,
		},
	}
	if err := s.content.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("inserting file: %w", err)
	}

	logger.Debug("Registered %s (%s, %d bytes)", item.Ref(), input.OriginalName, input.Size)
	return item, nil
}

// CreateText registers a text or document entry as a pending item.
func (s *ContentService) CreateText(ctx context.Context, input domain.NewText) (*domain.ContentItem, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	item := &domain.ContentItem{
		Kind:      input.EffectiveKind(),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Text: &domain.TextAttributes{
			Title:       input.Title,
			Body:        input.Body,
			ContentHash: domain.HashContent(input.Body),
		},
	}
	if err := s.content.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("inserting text: %w", err)
	}

	logger.Debug("Registered %s (%q, %d bytes)", item.Ref(), input.Title, len(input.Body))
	return item, nil
}

// Get retrieves an item by reference.
func (s *ContentService) Get(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return s.content.Get(ctx, ref)
}

// List returns items of a kind, newest first.
func (s *ContentService) List(ctx context.Context, kind domain.ContentKind) ([]domain.ContentItem, error) {
	if !kind.IsValid() {
		return nil, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown content kind %q", kind)}
	}
	return s.content.List(ctx, kind)
}

// FindDuplicates returns text items whose body hashes the same as body.
func (s *ContentService) FindDuplicates(ctx context.Context, body string) ([]domain.ContentItem, error) {
	return s.content.FindByHash(ctx, domain.HashContent(body))
}

// ResetToPending removes an item's chunks and returns it to pending.
func (s *ContentService) ResetToPending(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	return s.ForceStatus(ctx, ref, domain.StatusPending)
}

// ForceStatus sets any status without checking the state machine.
func (s *ContentService) ForceStatus(
	ctx context.Context, ref domain.ContentRef, status domain.ProcessingStatus,
) (*domain.ContentItem, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	defer s.gate.enterWrite()()

	item, err := s.content.UpdateStatus(ctx, ref, nil, status, s.now())
	if err != nil {
		return nil, err
	}
	logger.Warn("%s forced to %s", ref, status)

	if status != domain.StatusCompleted {
		n, err := s.purger.purge(ctx, ref)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			logger.Info("Removed %d chunks of %s", n, ref)
		}
	}
	return item, nil
}

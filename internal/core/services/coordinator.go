package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure Coordinator implements the interface.
var _ driving.ProcessingCoordinator = (*Coordinator)(nil)

// Coordinator owns every status change and embedding write.
// Claims are decided by the repository's compare-and-set; the per-item
// lock only orders completion, failure and chunk recording within this process.
type Coordinator struct {
	content    driven.ContentRepository
	embeddings driven.EmbeddingStore
	purger     chunkPurger
	locks      refLocks
	gate       *CorpusGate
	now        func() time.Time
}

// NewCoordinator creates a processing coordinator.
func NewCoordinator(content driven.ContentRepository, embeddings driven.EmbeddingStore) *Coordinator {
	return &Coordinator{
		content:    content,
		embeddings: embeddings,
		purger:     chunkPurger{embeddings: embeddings},
		now:        nowUTC,
	}
}

// SetVectorIndex sets the index kept in step with completed items.
func (c *Coordinator) SetVectorIndex(idx driven.VectorIndex) {
	c.purger.vectorIndex = idx
}

// SetCorpusGate sets the gate shared with the dashboard.
func (c *Coordinator) SetCorpusGate(g *CorpusGate) {
	c.gate = g
}

// SetClock replaces the clock used for timestamps.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// BeginProcessing claims a pending item.
func (c *Coordinator) BeginProcessing(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	item, err := c.content.UpdateStatus(ctx, ref,
		[]domain.ProcessingStatus{domain.StatusPending}, domain.StatusProcessing, c.now())
	if err != nil {
		return nil, err
	}

	logger.Debug("%s claimed for processing", ref)
	return item, nil
}

// CompleteProcessing stores all chunks of a processing item and marks it completed.
func (c *Coordinator) CompleteProcessing(
	ctx context.Context, ref domain.ContentRef, inputs []domain.ChunkInput,
) (*domain.ContentItem, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(ref)
	defer unlock()
	defer c.gate.enterWrite()()

	item, err := c.content.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.StatusProcessing {
		return nil, &domain.TransitionError{Ref: ref, From: item.Status, To: domain.StatusCompleted}
	}

	now := c.now()
	chunks, err := buildChunks(ref, inputs, now)
	if err == nil {
		chunks, err = c.embeddings.AddChunks(ctx, chunks)
	}
	if err != nil {
		c.failAfterChunkError(ctx, ref, err)
		return nil, fmt.Errorf("storing chunks of %s: %w", ref, err)
	}

	completed, err := c.content.UpdateStatus(ctx, ref,
		[]domain.ProcessingStatus{domain.StatusProcessing}, domain.StatusCompleted, now)
	if err != nil {
		// The item changed underneath us; leave no orphaned chunks behind.
		if _, purgeErr := c.purger.purge(ctx, ref); purgeErr != nil {
			logger.Warn("%s: %v", ref, purgeErr)
		}
		return nil, err
	}

	c.purger.index(ctx, chunks)
	logger.Info("%s completed with %d chunks", ref, len(chunks))
	return completed, nil
}

// failAfterChunkError marks an item failed after its chunks were rejected
// and drops any chunks recorded for it beforehand.
func (c *Coordinator) failAfterChunkError(ctx context.Context, ref domain.ContentRef, cause error) {
	_, err := c.content.UpdateStatus(ctx, ref,
		[]domain.ProcessingStatus{domain.StatusProcessing}, domain.StatusFailed, c.now())
	if err != nil {
		logger.Warn("%s: could not mark failed after chunk error: %v", ref, err)
		return
	}
	logger.Warn("%s failed: %v", ref, cause)

	if _, err := c.purger.purge(ctx, ref); err != nil {
		logger.Warn("%s: %v", ref, err)
	}
}

// FailProcessing marks a pending or processing item failed.
// Chunks recorded so far are removed; failed items carry no embeddings.
func (c *Coordinator) FailProcessing(
	ctx context.Context, ref domain.ContentRef, reason string,
) (*domain.ContentItem, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(ref)
	defer unlock()
	defer c.gate.enterWrite()()

	item, err := c.content.UpdateStatus(ctx, ref, domain.QueuedStatuses(), domain.StatusFailed, c.now())
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "no reason given"
	}
	logger.Warn("%s failed: %s", ref, reason)

	if _, err := c.purger.purge(ctx, ref); err != nil {
		return nil, err
	}
	return item, nil
}

// RecordChunk appends one chunk to an item that is being processed.
// A nil index takes the next free position.
func (c *Coordinator) RecordChunk(
	ctx context.Context, ref domain.ContentRef, input domain.ChunkInput,
) (*domain.EmbeddingChunk, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(ref)
	defer unlock()

	item, err := c.content.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.StatusProcessing {
		return nil, fmt.Errorf("recording chunk for %s in state %s: %w", ref, item.Status, domain.ErrInvalidTransition)
	}

	index := 0
	if input.Index != nil {
		index = *input.Index
	} else {
		existing, err := c.embeddings.ListByContent(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("listing chunks of %s: %w", ref, err)
		}
		if n := len(existing); n > 0 {
			index = existing[n-1].ChunkIndex + 1
		}
	}
	if err := validateChunk(index, input.Vector); err != nil {
		return nil, err
	}

	chunk := &domain.EmbeddingChunk{
		Content:    ref,
		ChunkIndex: index,
		Text:       input.Text,
		Vector:     domain.CopyVector(input.Vector),
		CreatedAt:  c.now(),
	}
	if err := c.embeddings.AddChunk(ctx, chunk); err != nil {
		return nil, err
	}

	logger.Debug("%s: recorded chunk %d (id %d)", ref, chunk.ChunkIndex, chunk.ID)
	return chunk, nil
}

// Transition applies a single state machine step.
func (c *Coordinator) Transition(
	ctx context.Context, ref domain.ContentRef, to domain.ProcessingStatus,
) (*domain.ContentItem, error) {
	switch to {
	case domain.StatusProcessing:
		return c.BeginProcessing(ctx, ref)
	case domain.StatusFailed:
		return c.FailProcessing(ctx, ref, "status update")
	case domain.StatusCompleted:
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		unlock := c.locks.lock(ref)
		defer unlock()
		item, err := c.content.UpdateStatus(ctx, ref,
			[]domain.ProcessingStatus{domain.StatusProcessing}, domain.StatusCompleted, c.now())
		if err != nil {
			return nil, err
		}
		chunks, err := c.embeddings.ListByContent(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("listing chunks of %s: %w", ref, err)
		}
		c.purger.index(ctx, chunks)
		return item, nil
	case domain.StatusPending:
		item, err := c.content.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		return nil, &domain.TransitionError{Ref: ref, From: item.Status, To: to}
	default:
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", to)}
	}
}

// buildChunks assigns indices and validates every input.
func buildChunks(ref domain.ContentRef, inputs []domain.ChunkInput, now time.Time) ([]domain.EmbeddingChunk, error) {
	chunks := make([]domain.EmbeddingChunk, 0, len(inputs))
	for i, in := range inputs {
		index := i
		if in.Index != nil {
			index = *in.Index
		}
		if err := validateChunk(index, in.Vector); err != nil {
			return nil, err
		}
		chunks = append(chunks, domain.EmbeddingChunk{
			Content:    ref,
			ChunkIndex: index,
			Text:       in.Text,
			Vector:     domain.CopyVector(in.Vector),
			CreatedAt:  now,
		})
	}
	return chunks, nil
}

func validateChunk(index int, vector []float32) error {
	if index < 0 {
		return &domain.ValidationError{Field: "chunk_index", Reason: "must not be negative"}
	}
	if len(vector) == 0 {
		return &domain.ValidationError{Field: "vector", Reason: "must not be empty"}
	}
	return nil
}

// isClaimLost reports whether err means another worker owns the item.
func isClaimLost(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition)
}

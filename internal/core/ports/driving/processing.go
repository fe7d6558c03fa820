package driving

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// ProcessingCoordinator drives items through the processing state machine.
// It is the only writer of status changes and embedding chunks.
type ProcessingCoordinator interface {
	// BeginProcessing claims a pending item. Exactly one concurrent caller wins.
	BeginProcessing(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error)

	// CompleteProcessing stores all chunks of a processing item and marks it completed.
	// If any chunk is rejected the item is marked failed and nothing is stored.
	CompleteProcessing(ctx context.Context, ref domain.ContentRef, chunks []domain.ChunkInput) (*domain.ContentItem, error)

	// FailProcessing marks a pending or processing item failed.
	FailProcessing(ctx context.Context, ref domain.ContentRef, reason string) (*domain.ContentItem, error)

	// RecordChunk appends one chunk to an item that is being processed.
	RecordChunk(ctx context.Context, ref domain.ContentRef, chunk domain.ChunkInput) (*domain.EmbeddingChunk, error)

	// Transition applies a single state machine step, dispatching to the operations above.
	// Moving to completed this way stores no chunks.
	Transition(ctx context.Context, ref domain.ContentRef, to domain.ProcessingStatus) (*domain.ContentItem, error)
}

// Pipeline turns pending items into embedded chunks.
type Pipeline interface {
	// Process claims, extracts, chunks, embeds and completes one item.
	// Any failure after the claim marks the item failed.
	Process(ctx context.Context, ref domain.ContentRef) (*ProcessOutcome, error)

	// ProcessPending processes every pending item with bounded parallelism.
	ProcessPending(ctx context.Context) (*ProcessReport, error)
}

// ProcessOutcome describes one processed item.
type ProcessOutcome struct {
	Ref    domain.ContentRef
	Status domain.ProcessingStatus
	Chunks int
}

// ProcessReport summarises a ProcessPending run.
type ProcessReport struct {
	Completed int
	Failed    int
	Skipped   int
	Chunks    int
	Errors    []error
}

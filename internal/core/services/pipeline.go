package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.Pipeline = (*Pipeline)(nil)

// DefaultWorkers is the number of items processed in parallel when unset.
const DefaultWorkers = 4

// Pipeline extracts, chunks and embeds pending items.
type Pipeline struct {
	content          driven.ContentRepository
	coordinator      driving.ProcessingCoordinator
	embeddingService driven.EmbeddingService
	normalisers      driven.NormaliserRegistry
	chunker          driven.PostProcessorPipeline
	workers          int
	readFile         func(path string) ([]byte, error)
}

// NewPipeline creates an ingestion pipeline.
// The normaliser registry is optional; without it file items fail with ErrUnsupportedType.
func NewPipeline(
	content driven.ContentRepository,
	coordinator driving.ProcessingCoordinator,
	embeddingService driven.EmbeddingService,
	normalisers driven.NormaliserRegistry,
	chunker driven.PostProcessorPipeline,
	workers int,
) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		content:          content,
		coordinator:      coordinator,
		embeddingService: embeddingService,
		normalisers:      normalisers,
		chunker:          chunker,
		workers:          workers,
		readFile:         os.ReadFile,
	}
}

// SetFileReader replaces how file items are read from their storage path.
func (p *Pipeline) SetFileReader(read func(path string) ([]byte, error)) {
	p.readFile = read
}

// Process claims, extracts, chunks, embeds and completes one item.
func (p *Pipeline) Process(ctx context.Context, ref domain.ContentRef) (*driving.ProcessOutcome, error) {
	if p.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	item, err := p.coordinator.BeginProcessing(ctx, ref)
	if err != nil {
		return nil, err
	}
	outcome := &driving.ProcessOutcome{Ref: ref, Status: domain.StatusProcessing}

	inputs, err := p.embed(ctx, item)
	if err != nil {
		outcome.Status = domain.StatusFailed
		if _, failErr := p.coordinator.FailProcessing(context.WithoutCancel(ctx), ref, err.Error()); failErr != nil {
			logger.Warn("%s: could not record failure: %v", ref, failErr)
		}
		return outcome, err
	}

	if _, err := p.coordinator.CompleteProcessing(ctx, ref, inputs); err != nil {
		outcome.Status = domain.StatusFailed
		return outcome, err
	}

	outcome.Status = domain.StatusCompleted
	outcome.Chunks = len(inputs)
	return outcome, nil
}

// embed turns an item's text into chunk inputs.
func (p *Pipeline) embed(ctx context.Context, item *domain.ContentItem) ([]domain.ChunkInput, error) {
	text, err := p.extract(ctx, item)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ValidationError{Field: "content", Reason: "no extractable text"}
	}

	spans, err := p.chunker.Process(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chunking: %w", err)
	}
	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Text
	}

	vectors, err := p.embeddingService.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &domain.ProviderError{Op: "embed chunks", Err: err}
	}
	if len(vectors) != len(spans) {
		return nil, &domain.ProviderError{
			Op:  "embed chunks",
			Err: fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(spans)),
		}
	}

	inputs := make([]domain.ChunkInput, len(spans))
	for i, span := range spans {
		index := span.Index
		inputs[i] = domain.ChunkInput{Index: &index, Text: span.Text, Vector: vectors[i]}
	}
	logger.Debug("%s: %d chunks embedded", item.Ref(), len(inputs))
	return inputs, nil
}

// extract returns the plain text of an item.
func (p *Pipeline) extract(ctx context.Context, item *domain.ContentItem) (string, error) {
	if item.Text != nil {
		return item.Text.Body, nil
	}
	if item.File == nil {
		return "", fmt.Errorf("%s has no payload: %w", item.Ref(), domain.ErrInvalidInput)
	}
	if p.normalisers == nil {
		return "", fmt.Errorf("%s (%s): %w", item.Ref(), item.File.MIMEType, domain.ErrUnsupportedType)
	}

	data, err := p.readFile(item.File.StoragePath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", item.File.StoragePath, err)
	}
	result, err := p.normalisers.Normalise(ctx, &domain.RawFile{
		Path:     item.File.StoragePath,
		Name:     item.File.OriginalName,
		MIMEType: item.File.MIMEType,
		Content:  data,
	})
	if err != nil {
		return "", fmt.Errorf("normalising %s: %w", item.Ref(), err)
	}
	return result.Text, nil
}

// ProcessPending processes every pending item, oldest first, with bounded parallelism.
// Per-item failures are reported, not returned.
func (p *Pipeline) ProcessPending(ctx context.Context) (*driving.ProcessReport, error) {
	logger.Section("Processing Queue")

	items, err := p.content.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending items: %w", err)
	}
	queue := buildQueue(items)
	logger.Debug("%d pending items, %d workers", len(queue), p.workers)

	report := &driving.ProcessReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, q := range queue {
		ref := q.Ref()
		g.Go(func() error {
			outcome, err := p.Process(gctx, ref)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Completed++
				report.Chunks += outcome.Chunks
			case outcome == nil && isClaimLost(err):
				report.Skipped++
			default:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("%s: %w", ref, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Processed queue: %d completed, %d failed, %d skipped",
		report.Completed, report.Failed, report.Skipped)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

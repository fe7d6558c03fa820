package driven

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// PostProcessor turns extracted text into chunk spans.
// PostProcessors are chained in a pipeline (e.g., chunking, whitespace cleanup).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the full text and the spans so far.
	// A processor that creates spans (e.g., chunker) receives nil spans.
	Process(ctx context.Context, text string, spans []domain.TextSpan) ([]domain.TextSpan, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the text through all processors in order.
	Process(ctx context.Context, text string) ([]domain.TextSpan, error)
}

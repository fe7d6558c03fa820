// Package postprocessors turns extracted text into chunk spans.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains multiple PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the text through all processors in order.
// The first processor receives nil spans and should create them.
// An empty pipeline returns the whole text as a single span.
func (p *Pipeline) Process(ctx context.Context, text string) ([]domain.TextSpan, error) {
	if len(p.processors) == 0 {
		if text == "" {
			return nil, nil
		}
		return []domain.TextSpan{{Index: 0, Text: text}}, nil
	}

	var spans []domain.TextSpan
	for _, processor := range p.processors {
		var err error
		spans, err = processor.Process(ctx, text, spans)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	return spans, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

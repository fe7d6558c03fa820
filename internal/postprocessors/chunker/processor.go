// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Processor splits text into fixed-size, overlapping spans.
// Sizes count runes, so multi-byte characters are never split.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits text into spans. Incoming spans are ignored.
func (p *Processor) Process(ctx context.Context, text string, _ []domain.TextSpan) ([]domain.TextSpan, error) {
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := p.chunkSize - p.overlap
	spans := make([]domain.TextSpan, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, domain.TextSpan{Index: len(spans), Text: string(runes[start:end])})

		// The tail is already covered by this span.
		if end == len(runes) {
			break
		}
	}

	return spans, nil
}

// Package whitespace provides a processor that tidies span text.
package whitespace

import (
	"context"
	"strings"
	"unicode"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Processor collapses runs of whitespace inside each span and drops
// spans that are left empty. Remaining spans are renumbered from zero.
// Paragraph breaks survive as a single newline.
type Processor struct{}

// New creates a whitespace processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "whitespace"
}

// Process cleans the spans. With no spans yet, the whole text becomes one span.
func (p *Processor) Process(_ context.Context, text string, spans []domain.TextSpan) ([]domain.TextSpan, error) {
	if spans == nil {
		spans = []domain.TextSpan{{Index: 0, Text: text}}
	}

	out := make([]domain.TextSpan, 0, len(spans))
	for _, span := range spans {
		cleaned := collapse(span.Text)
		if cleaned == "" {
			continue
		}
		out = append(out, domain.TextSpan{Index: len(out), Text: cleaned})
	}
	return out, nil
}

// collapse squeezes spaces and tabs to one space and blank-line runs to one newline.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace, pendingNewline := false, false
	for _, r := range s {
		if !unicode.IsSpace(r) {
			switch {
			case pendingNewline && b.Len() > 0:
				b.WriteByte('\n')
			case pendingSpace && b.Len() > 0:
				b.WriteByte(' ')
			}
			pendingSpace, pendingNewline = false, false
			b.WriteRune(r)
			continue
		}
		if r == '\n' {
			pendingNewline = true
		} else {
			pendingSpace = true
		}
	}
	return b.String()
}

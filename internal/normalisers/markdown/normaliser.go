// Package markdown provides a Normaliser for Markdown documents.
// Text is extracted from the goldmark syntax tree, so formatting
// markers never reach the embedding model.
package markdown

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct {
	md goldmark.Markdown
}

// New creates a new Markdown normaliser with GitHub flavoured extensions.
func New() *Normaliser {
	return &Normaliser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise extracts plain text and the first level one heading.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	source := raw.Content
	doc := n.md.Parser().Parse(text.NewReader(source))

	e := &extractor{source: source}
	if err := ast.Walk(doc, e.visit); err != nil {
		return nil, err
	}

	title := e.title
	if title == "" {
		title = plaintext.TitleFromName(raw.Name, raw.Path)
	}

	return &driven.NormaliseResult{
		Title: title,
		Text:  e.text(),
	}, nil
}

// extractor collects the readable text of a document, one block per paragraph.
type extractor struct {
	source []byte
	buf    bytes.Buffer
	title  string
}

func (e *extractor) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindList {
			e.endBlock()
		}
		return ast.WalkContinue, nil
	}

	switch node := n.(type) {
	case *ast.Heading:
		if node.Level == 1 && e.title == "" {
			e.title = strings.TrimSpace(plainText(node, e.source))
		}
	case *ast.Text:
		e.buf.Write(node.Segment.Value(e.source))
		if node.SoftLineBreak() || node.HardLineBreak() {
			e.buf.WriteByte(' ')
		}
	case *ast.String:
		e.buf.Write(node.Value)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			e.buf.Write(seg.Value(e.source))
		}
		return ast.WalkSkipChildren, nil
	case *ast.Image:
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock, *ast.RawHTML:
		return ast.WalkSkipChildren, nil
	case *extast.TableCell:
		if n.PreviousSibling() != nil {
			e.buf.WriteString(" | ")
		}
	}
	return ast.WalkContinue, nil
}

func (e *extractor) endBlock() {
	trimmed := bytes.TrimRight(e.buf.Bytes(), " \n")
	e.buf.Truncate(len(trimmed))
	if e.buf.Len() > 0 {
		e.buf.WriteString("\n\n")
	}
}

func (e *extractor) text() string {
	return strings.TrimSpace(e.buf.String())
}

// plainText concatenates the text segments below n.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

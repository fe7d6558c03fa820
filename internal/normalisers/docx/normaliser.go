// Package docx extracts the text of Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/normalisers/plaintext"
)

// MIMEType is the Office Open XML word processing type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise returns the document's paragraphs, one per line.
// The title comes from docProps/core.xml, else the file name.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("opening docx: %w", domain.ErrInvalidInput)
	}

	body, err := readPart(archive, "word/document.xml")
	if err != nil {
		return nil, err
	}
	text, err := paragraphs(body)
	if err != nil {
		return nil, fmt.Errorf("parsing word/document.xml: %w", domain.ErrInvalidInput)
	}

	title := plaintext.TitleFromName(raw.Name, raw.Path)
	if core, err := readPart(archive, "docProps/core.xml"); err == nil {
		if t := coreTitle(core); t != "" {
			title = t
		}
	}

	return &driven.NormaliseResult{Title: title, Text: text}, nil
}

var errMissingPart = errors.New("missing part")

// readPart returns the bytes of one archive member.
func readPart(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, domain.ErrInvalidInput)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, domain.ErrInvalidInput)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s: %w", name, errMissingPart)
}

// paragraphs walks the document XML, joining runs of w:t and breaking on w:p.
// Table cells end up on their own lines since each holds a paragraph.
func paragraphs(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var out, para strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(para.String()); line != "" {
					out.WriteString(line)
					out.WriteByte('\n')
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	return strings.TrimSpace(out.String()), nil
}

// coreTitle reads dc:title from docProps/core.xml.
func coreTitle(data []byte) string {
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}

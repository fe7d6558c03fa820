// Package eml extracts the text of RFC 822 email files.
package eml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/normalisers/html"
	"github.com/custodia-labs/kbase/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles saved email messages.
type Normaliser struct{}

// New creates a new email normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise returns the address headers followed by the message body.
// Plain text parts are preferred over HTML; attachments are ignored.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawFile) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", domain.ErrInvalidInput)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	body, err := messageBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, h := range []string{"From", "To", "Date", "Subject"} {
		if v := decodeHeader(msg.Header.Get(h)); v != "" {
			fmt.Fprintf(&text, "%s: %s\n", h, v)
		}
	}
	text.WriteByte('\n')
	text.WriteString(body)

	title := subject
	if title == "" {
		title = plaintext.TitleFromName(raw.Name, raw.Path)
	}
	return &driven.NormaliseResult{Title: title, Text: strings.TrimSpace(text.String())}, nil
}

// decodeHeader decodes RFC 2047 words, keeping the raw value when that fails.
func decodeHeader(v string) string {
	if v == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// messageBody returns the readable text of a body with the given headers.
func messageBody(contentType, encoding string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(r, params["boundary"])
	}

	data, err := io.ReadAll(decodeTransfer(encoding, r))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", domain.ErrInvalidInput)
	}
	switch mediaType {
	case "text/html":
		return html.StripTags(string(data)), nil
	case "text/plain":
		return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
	default:
		return "", nil
	}
}

// decodeTransfer undoes quoted-printable encoding. Other encodings pass through.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	if strings.EqualFold(strings.TrimSpace(encoding), "quoted-printable") {
		return quotedprintable.NewReader(r)
	}
	return r
}

// multipartBody joins the text parts, falling back to HTML parts.
func multipartBody(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}

	var plain, rich []string
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A truncated message keeps whatever parts were read.
			break
		}

		ct := part.Header.Get("Content-Type")
		if strings.HasPrefix(part.Header.Get("Content-Disposition"), "attachment") {
			continue
		}
		mediaType, _, _ := mime.ParseMediaType(ct)

		text, err := messageBody(ct, part.Header.Get("Content-Transfer-Encoding"), part)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		if mediaType == "text/html" {
			rich = append(rich, text)
		} else {
			plain = append(plain, text)
		}
	}

	if len(plain) > 0 {
		return strings.Join(plain, "\n"), nil
	}
	return strings.Join(rich, "\n"), nil
}

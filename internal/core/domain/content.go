package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContentKind tags the variant of a content item.
type ContentKind string

// Content kinds.
const (
	// KindFile is an uploaded file, stored in the file family.
	KindFile ContentKind = "file"

	// KindText is a submitted text entry, stored in the text family.
	KindText ContentKind = "text"

	// KindDocument is a text entry tagged as a document. Same family as text.
	KindDocument ContentKind = "document"
)

// IsValid returns true if the kind is recognised.
func (k ContentKind) IsValid() bool {
	switch k {
	case KindFile, KindText, KindDocument:
		return true
	default:
		return false
	}
}

// Family returns the storage family of the kind: KindFile or KindText.
func (k ContentKind) Family() ContentKind {
	if k == KindFile {
		return KindFile
	}
	return KindText
}

// Covers reports whether a filter on k admits items of kind other.
// Text covers the whole text family; document covers documents only.
func (k ContentKind) Covers(other ContentKind) bool {
	if k == KindText {
		return other.Family() == KindText
	}
	return k == other
}

// String returns the string representation.
func (k ContentKind) String() string {
	return string(k)
}

// ParseContentKind converts a string to a ContentKind.
func ParseContentKind(s string) (ContentKind, error) {
	kind := ContentKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown content kind %q", s)}
	}
	return kind, nil
}

// AllContentKinds returns every content kind.
func AllContentKinds() []ContentKind {
	return []ContentKind{KindFile, KindText, KindDocument}
}

// ContentRef identifies a content item across both families.
// IDs are only unique within a family, so the kind is part of the identity.
type ContentRef struct {
	Kind ContentKind
	ID   int64
}

// FileRef returns a reference to a file item.
func FileRef(id int64) ContentRef { return ContentRef{Kind: KindFile, ID: id} }

// TextRef returns a reference to a text item.
func TextRef(id int64) ContentRef { return ContentRef{Kind: KindText, ID: id} }

// DocumentRef returns a reference to a document item.
func DocumentRef(id int64) ContentRef { return ContentRef{Kind: KindDocument, ID: id} }

// String formats the reference as kind:id.
func (r ContentRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Validate checks the reference is well formed.
func (r ContentRef) Validate() error {
	if !r.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown content kind %q", r.Kind)}
	}
	if r.ID <= 0 {
		return &ValidationError{Field: "id", Reason: "must be positive"}
	}
	return nil
}

// ParseContentRef parses a kind:id reference such as "file:12".
func ParseContentRef(s string) (ContentRef, error) {
	kindPart, idPart, ok := strings.Cut(s, ":")
	if !ok {
		return ContentRef{}, &ValidationError{Field: "ref", Reason: fmt.Sprintf("expected kind:id, got %q", s)}
	}
	kind, err := ParseContentKind(kindPart)
	if err != nil {
		return ContentRef{}, err
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return ContentRef{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("not a number: %q", idPart)}
	}
	ref := ContentRef{Kind: kind, ID: id}
	if err := ref.Validate(); err != nil {
		return ContentRef{}, err
	}
	return ref, nil
}

// FileAttributes holds the metadata of an uploaded file.
type FileAttributes struct {
	// Filename is the stored (server-side) file name.
	Filename string

	// OriginalName is the name the file was uploaded with.
	OriginalName string

	// Size is the file size in bytes.
	Size int64

	// MIMEType is the content type of the file.
	MIMEType string

	// StoragePath is where the bytes live on disk.
	StoragePath string
}

// TextAttributes holds the payload of a text or document entry.
type TextAttributes struct {
	// Title is the display title.
	Title string

	// Body is the full text.
	Body string

	// ContentHash is the SHA-256 hex digest of Body.
	ContentHash string
}

// ContentItem is a unit of ingested content.
// Exactly one of File and Text is set, matching Kind's family.
type ContentItem struct {
	ID        int64
	Kind      ContentKind
	Status    ProcessingStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	File *FileAttributes
	Text *TextAttributes
}

// Ref returns the item's content reference.
func (c *ContentItem) Ref() ContentRef {
	return ContentRef{Kind: c.Kind, ID: c.ID}
}

// DisplayName is the original file name or the text title.
func (c *ContentItem) DisplayName() string {
	switch {
	case c.File != nil:
		return c.File.OriginalName
	case c.Text != nil:
		return c.Text.Title
	default:
		return c.Ref().String()
	}
}

// StorageBytes is the size of the item's content in bytes.
func (c *ContentItem) StorageBytes() int64 {
	switch {
	case c.File != nil:
		return c.File.Size
	case c.Text != nil:
		return int64(len(c.Text.Body))
	default:
		return 0
	}
}

// Clone returns a deep copy of the item.
func (c *ContentItem) Clone() *ContentItem {
	out := *c
	if c.File != nil {
		f := *c.File
		out.File = &f
	}
	if c.Text != nil {
		t := *c.Text
		out.Text = &t
	}
	return &out
}

// NewFile is the input for registering an uploaded file.
type NewFile struct {
	Filename     string `json:"filename" yaml:"filename"`
	OriginalName string `json:"original_name" yaml:"original_name"`
	Size         int64  `json:"file_size" yaml:"file_size"`
	MIMEType     string `json:"mime_type" yaml:"mime_type"`
	StoragePath  string `json:"storage_path" yaml:"storage_path"`
}

// Validate checks all fields are present and the size is positive.
func (f NewFile) Validate() error {
	required := []struct{ field, value string }{
		{"filename", f.Filename},
		{"original_name", f.OriginalName},
		{"mime_type", f.MIMEType},
		{"storage_path", f.StoragePath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "must not be empty"}
		}
	}
	if f.Size <= 0 {
		return &ValidationError{Field: "file_size", Reason: "must be positive"}
	}
	return nil
}

// NewText is the input for submitting a text or document entry.
type NewText struct {
	Title string      `json:"title" yaml:"title"`
	Body  string      `json:"content" yaml:"content"`
	Kind  ContentKind `json:"content_type" yaml:"content_type"`
}

// Validate checks the title and body are non-empty and the kind is text-family.
func (t NewText) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(t.Body) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if t.Kind != "" && t.Kind != KindText && t.Kind != KindDocument {
		return &ValidationError{Field: "content_type", Reason: fmt.Sprintf("must be text or document, got %q", t.Kind)}
	}
	return nil
}

// EffectiveKind returns the kind, defaulting to KindText.
func (t NewText) EffectiveKind() ContentKind {
	if t.Kind == "" {
		return KindText
	}
	return t.Kind
}

// HashContent returns the deduplication hash of a text body.
func HashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

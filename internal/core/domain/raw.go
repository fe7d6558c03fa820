package domain

// RawFile is the bytes of an uploaded file read back from its storage path.
// It is the input to normalisation.
type RawFile struct {
	// Path is where the bytes were read from.
	Path string

	// Name is the original file name.
	Name string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// TextSpan is a contiguous piece of extracted text destined to become a chunk.
type TextSpan struct {
	// Index is the span's position in the item.
	Index int

	// Text is the span content.
	Text string
}

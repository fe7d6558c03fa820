package domain

import (
	"math"
	"time"
)

// EmbeddingChunk is one embedded span of a content item.
type EmbeddingChunk struct {
	// ID is assigned by the store, ascending in insertion order.
	ID int64

	// Content references the owning item.
	Content ContentRef

	// ChunkIndex is the position within the item, unique per item.
	ChunkIndex int

	// Text is the chunk's source text.
	Text string

	// Vector is the embedding. Its length equals the corpus dimension.
	Vector []float32

	// CreatedAt is when the chunk was stored.
	CreatedAt time.Time
}

// StorageBytes estimates the chunk's footprint: 4 bytes per component plus the text.
func (c *EmbeddingChunk) StorageBytes() int64 {
	return int64(4*len(c.Vector) + len(c.Text))
}

// Clone returns a copy with its own vector.
func (c *EmbeddingChunk) Clone() EmbeddingChunk {
	out := *c
	out.Vector = CopyVector(c.Vector)
	return out
}

// ChunkInput is one chunk handed to the coordinator on completion.
type ChunkInput struct {
	// Index is the chunk position. Nil means its position in the input list.
	Index *int `json:"chunk_index,omitempty"`

	// Text is the chunk's source text.
	Text string `json:"chunk_text"`

	// Vector is the embedding.
	Vector []float32 `json:"vector"`
}

// CopyVector returns a copy of v.
func CopyVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// CosineSimilarity returns dot(a,b)/(|a||b|).
// It returns 0 when either norm is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

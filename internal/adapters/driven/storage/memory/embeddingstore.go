package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// Ensure EmbeddingStore implements the interface.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

type chunkKey struct {
	ref   domain.ContentRef
	index int
}

// EmbeddingStore is an in-memory implementation of driven.EmbeddingStore.
type EmbeddingStore struct {
	mu        sync.RWMutex
	chunks    map[int64]*domain.EmbeddingChunk
	byIndex   map[chunkKey]int64
	nextID    int64
	dimension int
}

// NewEmbeddingStore creates a new in-memory embedding store.
func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{
		chunks:  make(map[int64]*domain.EmbeddingChunk),
		byIndex: make(map[chunkKey]int64),
		nextID:  1,
	}
}

// AddChunk stores one chunk and assigns its ID.
func (s *EmbeddingStore) AddChunk(ctx context.Context, chunk *domain.EmbeddingChunk) error {
	stored, err := s.AddChunks(ctx, []domain.EmbeddingChunk{*chunk})
	if err != nil {
		return err
	}
	chunk.ID = stored[0].ID
	return nil
}

// AddChunks validates the whole batch before storing any of it.
func (s *EmbeddingStore) AddChunks(
	_ context.Context,
	chunks []domain.EmbeddingChunk,
) ([]domain.EmbeddingChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dimension := s.dimension
	if dimension == 0 {
		dimension = len(chunks[0].Vector)
	}
	seen := make(map[chunkKey]bool, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Vector) == 0 {
			return nil, &domain.ValidationError{Field: "vector", Reason: "must not be empty"}
		}
		if len(c.Vector) != dimension {
			return nil, &domain.DimensionError{Expected: dimension, Got: len(c.Vector)}
		}
		key := chunkKey{ref: c.Content, index: c.ChunkIndex}
		if _, exists := s.byIndex[key]; exists || seen[key] {
			return nil, &domain.DuplicateChunkError{Ref: c.Content, Index: c.ChunkIndex}
		}
		seen[key] = true
	}

	s.dimension = dimension
	out := make([]domain.EmbeddingChunk, len(chunks))
	for i := range chunks {
		stored := chunks[i].Clone()
		stored.ID = s.nextID
		s.nextID++
		s.chunks[stored.ID] = &stored
		s.byIndex[chunkKey{ref: stored.Content, index: stored.ChunkIndex}] = stored.ID
		out[i] = stored.Clone()
	}
	return out, nil
}

// ListByContent returns an item's chunks in ascending chunk index.
func (s *EmbeddingStore) ListByContent(
	_ context.Context,
	ref domain.ContentRef,
) ([]domain.EmbeddingChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.EmbeddingChunk
	for _, c := range s.chunks {
		if c.Content == ref {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

// ListAll returns every chunk in ascending ID.
func (s *EmbeddingStore) ListAll(ctx context.Context) ([]domain.EmbeddingChunk, error) {
	var out []domain.EmbeddingChunk
	err := s.ForEach(ctx, func(c *domain.EmbeddingChunk) error {
		out = append(out, *c)
		return nil
	})
	return out, err
}

// ForEach calls fn for a copy of every chunk in ascending ID.
// fn runs outside the store lock.
func (s *EmbeddingStore) ForEach(ctx context.Context, fn func(chunk *domain.EmbeddingChunk) error) error {
	s.mu.RLock()
	snapshot := make([]domain.EmbeddingChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		snapshot = append(snapshot, c.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	for i := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *EmbeddingStore) GetChunk(_ context.Context, id int64) (*domain.EmbeddingChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := c.Clone()
	return &out, nil
}

// CountAll returns the number of stored chunks.
func (s *EmbeddingStore) CountAll(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// TotalStorageBytes sums the storage estimate of every chunk.
func (s *EmbeddingStore) TotalStorageBytes(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, c := range s.chunks {
		total += c.StorageBytes()
	}
	return total, nil
}

// Dimension returns the corpus dimension.
func (s *EmbeddingStore) Dimension(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension, nil
}

// DeleteByContent removes an item's chunks and returns their IDs in ascending order.
func (s *EmbeddingStore) DeleteByContent(_ context.Context, ref domain.ContentRef) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, c := range s.chunks {
		if c.Content != ref {
			continue
		}
		ids = append(ids, id)
		delete(s.byIndex, chunkKey{ref: c.Content, index: c.ChunkIndex})
		delete(s.chunks, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

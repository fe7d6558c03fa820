package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// mockEmbeddingService returns a vector per known text and a fallback otherwise.
type mockEmbeddingService struct {
	vectors  map[string][]float32
	fallback []float32
	embedErr error
	calls    int
	mu       sync.Mutex
}

func (m *mockEmbeddingService) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return m.fallback
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vectorFor(text)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int   { return len(m.fallback) }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockVectorIndex is an exact index over the chunks added to it.
type mockVectorIndex struct {
	mu        sync.Mutex
	vectors   map[int64][]float32
	searchErr error
	searches  int
	rebuilds  int
}

var _ driven.RebuildableIndex = (*mockVectorIndex)(nil)

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{vectors: make(map[int64][]float32)}
}

func (m *mockVectorIndex) Add(_ context.Context, chunk domain.EmbeddingChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[chunk.ID] = chunk.Vector
	return nil
}

func (m *mockVectorIndex) Delete(_ context.Context, ids ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	hits := make([]driven.VectorHit, 0, len(m.vectors))
	for id, v := range m.vectors {
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: domain.CosineSimilarity(query, v)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockVectorIndex) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors)
}

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) Rebuild(ctx context.Context, store driven.EmbeddingStore) (int, error) {
	m.mu.Lock()
	m.vectors = make(map[int64][]float32)
	m.rebuilds++
	m.mu.Unlock()

	err := store.ForEach(ctx, func(chunk *domain.EmbeddingChunk) error {
		return m.Add(ctx, *chunk)
	})
	return m.Count(), err
}

// vanishingContent hides chosen items as if they had been removed.
type vanishingContent struct {
	driven.ContentRepository
	gone map[domain.ContentRef]bool
}

func (v *vanishingContent) Get(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	if v.gone[ref] {
		return nil, &domain.NotFoundError{Ref: ref}
	}
	return v.ContentRepository.Get(ctx, ref)
}

// failingEmbeddingStore wraps a store and fails chosen operations.
type failingEmbeddingStore struct {
	driven.EmbeddingStore
	addErr error
}

func (f *failingEmbeddingStore) AddChunks(
	ctx context.Context, chunks []domain.EmbeddingChunk,
) ([]domain.EmbeddingChunk, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.EmbeddingStore.AddChunks(ctx, chunks)
}

var errStoreDown = errors.New("store down")

// fixture wires the core services over the memory adapters.
type fixture struct {
	content     *memory.ContentStore
	embeddings  *memory.EmbeddingStore
	usage       *memory.UsageStore
	contentSvc  *ContentService
	coordinator *Coordinator
	gate        *CorpusGate
}

func newFixture() *fixture {
	content := memory.NewContentStore()
	embeddings := memory.NewEmbeddingStore()

	gate := NewCorpusGate()
	contentSvc := NewContentService(content, embeddings)
	contentSvc.SetClock(fixedClock(testNow))
	contentSvc.SetCorpusGate(gate)
	coordinator := NewCoordinator(content, embeddings)
	coordinator.SetClock(fixedClock(testNow))
	coordinator.SetCorpusGate(gate)

	return &fixture{
		content:     content,
		embeddings:  embeddings,
		usage:       memory.NewUsageStore(),
		contentSvc:  contentSvc,
		coordinator: coordinator,
		gate:        gate,
	}
}

func (f *fixture) addText(ctx context.Context, title, body string) *domain.ContentItem {
	item, err := f.contentSvc.CreateText(ctx, domain.NewText{Title: title, Body: body})
	if err != nil {
		panic(err)
	}
	return item
}

func (f *fixture) addFile(ctx context.Context, name string, size int64) *domain.ContentItem {
	item, err := f.contentSvc.CreateFile(ctx, domain.NewFile{
		Filename:     name,
		OriginalName: name,
		Size:         size,
		MIMEType:     "text/plain",
		StoragePath:  "/data/" + name,
	})
	if err != nil {
		panic(err)
	}
	return item
}

// complete runs an item through begin and complete with the given vectors.
func (f *fixture) complete(ctx context.Context, ref domain.ContentRef, vectors ...[]float32) {
	if _, err := f.coordinator.BeginProcessing(ctx, ref); err != nil {
		panic(err)
	}
	inputs := make([]domain.ChunkInput, len(vectors))
	for i, v := range vectors {
		inputs[i] = domain.ChunkInput{Text: ref.String(), Vector: v}
	}
	if _, err := f.coordinator.CompleteProcessing(ctx, ref, inputs); err != nil {
		panic(err)
	}
}

func intPtr(i int) *int { return &i }

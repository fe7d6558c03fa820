package services

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// minIndexCandidates is the smallest candidate set requested from the vector index.
const minIndexCandidates = 32

// SearchService ranks stored chunks by cosine similarity to a query.
type SearchService struct {
	content          driven.ContentRepository
	embeddings       driven.EmbeddingStore
	embeddingService driven.EmbeddingService
	vectorIndex      driven.VectorIndex
}

// NewSearchService creates a new search service.
// The embeddingService parameter is optional (can be nil); search then fails
// with ErrEmbeddingUnavailable.
func NewSearchService(
	content driven.ContentRepository,
	embeddings driven.EmbeddingStore,
	embeddingService driven.EmbeddingService,
) *SearchService {
	return &SearchService{
		content:          content,
		embeddings:       embeddings,
		embeddingService: embeddingService,
	}
}

// SetVectorIndex routes queries through an approximate index for candidates.
func (s *SearchService) SetVectorIndex(idx driven.VectorIndex) {
	s.vectorIndex = idx
}

// Search embeds the query and returns the most similar chunks.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	limit := opts.EffectiveLimit()
	threshold := opts.EffectiveThreshold()
	logger.Debug("Limit: %d, threshold: %.3f", limit, threshold)

	queryVec, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		return nil, &domain.ProviderError{Op: "embed query", Err: err}
	}

	dim, err := s.embeddings.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading corpus dimension: %w", err)
	}
	if dim == 0 {
		logger.Debug("Empty corpus, returning no results")
		return []domain.SearchResult{}, nil
	}
	if len(queryVec) != dim {
		return nil, &domain.DimensionError{Expected: dim, Got: len(queryVec)}
	}

	top := newTopK(limit)
	names := make(map[domain.ContentRef]itemName)
	consider := func(chunk *domain.EmbeddingChunk) error {
		if !opts.MatchesKind(chunk.Content.Kind) {
			return nil
		}
		sim := domain.CosineSimilarity(queryVec, chunk.Vector)
		if math.IsNaN(sim) || sim < threshold {
			return nil
		}
		name, ok, err := s.displayName(ctx, names, chunk)
		if err != nil || !ok {
			return err
		}
		top.offer(scoredChunk{chunk: chunk.Clone(), similarity: sim, name: name})
		return nil
	}

	usedIndex := false
	if s.vectorIndex != nil {
		usedIndex, err = s.searchIndex(ctx, queryVec, limit, consider)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("vector index search failed, scanning store: %v", err)
			usedIndex = false
			top = newTopK(limit)
		}
	}
	if !usedIndex {
		err = s.embeddings.ForEach(ctx, func(chunk *domain.EmbeddingChunk) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return consider(chunk)
		})
		if err != nil {
			return nil, fmt.Errorf("scanning chunks: %w", err)
		}
	}

	results := toResults(top.sorted())
	logger.Debug("Returning %d results", len(results))
	return results, nil
}

// SyncVectorIndex rebuilds the vector index when it holds fewer vectors than
// the store, as happens when the index is enabled on an existing corpus.
func (s *SearchService) SyncVectorIndex(ctx context.Context) error {
	if s.vectorIndex == nil {
		return nil
	}
	stored, err := s.embeddings.CountAll(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	indexed := s.vectorIndex.Count()
	if indexed >= stored {
		return nil
	}

	rebuilder, ok := s.vectorIndex.(driven.RebuildableIndex)
	if !ok {
		logger.Warn("vector index holds %d of %d chunks and cannot rebuild; searches will scan", indexed, stored)
		return nil
	}
	logger.Info("Vector index holds %d of %d chunks, rebuilding", indexed, stored)
	if _, err := rebuilder.Rebuild(ctx, s.embeddings); err != nil {
		return fmt.Errorf("rebuilding vector index: %w", err)
	}
	return nil
}

// searchIndex feeds index candidates through consider, rescored on stored vectors.
// Returns false when the index lags the store and the store should be scanned instead.
func (s *SearchService) searchIndex(
	ctx context.Context, queryVec []float32, limit int, consider func(*domain.EmbeddingChunk) error,
) (bool, error) {
	indexed := s.vectorIndex.Count()
	if indexed == 0 {
		return false, nil
	}
	stored, err := s.embeddings.CountAll(ctx)
	if err != nil {
		return false, fmt.Errorf("counting chunks: %w", err)
	}
	if indexed < stored {
		logger.Debug("Vector index holds %d of %d chunks, scanning store", indexed, stored)
		return false, nil
	}

	k := limit * 4
	if k < minIndexCandidates {
		k = minIndexCandidates
	}
	hits, err := s.vectorIndex.Search(ctx, queryVec, k)
	if err != nil {
		return false, err
	}
	logger.Debug("Vector index returned %d candidates", len(hits))

	for _, hit := range hits {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		chunk, err := s.embeddings.GetChunk(ctx, hit.ChunkID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if err := consider(chunk); err != nil {
			return false, err
		}
	}
	return true, nil
}

// itemName caches an owning item's display name; exists is false once it vanished.
type itemName struct {
	name   string
	exists bool
}

// displayName resolves the owning item's name, caching per ref.
// It reports false when the item no longer exists.
func (s *SearchService) displayName(
	ctx context.Context, names map[domain.ContentRef]itemName, chunk *domain.EmbeddingChunk,
) (string, bool, error) {
	ref := chunk.Content
	if cached, ok := names[ref]; ok {
		return cached.name, cached.exists, nil
	}
	item, err := s.content.Get(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("Skipping chunks of %s: it no longer exists", ref)
		names[ref] = itemName{}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading %s: %w", ref, err)
	}
	cached := itemName{name: item.DisplayName(), exists: true}
	names[ref] = cached
	return cached.name, true, nil
}

func toResults(scored []scoredChunk) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(scored))
	for _, sc := range scored {
		results = append(results, domain.SearchResult{
			ChunkID:     sc.chunk.ID,
			Content:     sc.chunk.Content,
			ChunkIndex:  sc.chunk.ChunkIndex,
			ChunkText:   sc.chunk.Text,
			Similarity:  sc.similarity,
			DisplayName: sc.name,
		})
	}
	return results
}

// scoredChunk holds a candidate before hydration.
type scoredChunk struct {
	chunk      domain.EmbeddingChunk
	similarity float64
	name       string
}

// ranksAbove orders by similarity descending, then chunk ID ascending.
func (a scoredChunk) ranksAbove(b scoredChunk) bool {
	if a.similarity != b.similarity {
		return a.similarity > b.similarity
	}
	return a.chunk.ID < b.chunk.ID
}

// topK keeps the best k candidates seen so far.
// The heap root is the weakest kept candidate.
type topK struct {
	k     int
	items []scoredChunk
}

func newTopK(k int) *topK {
	return &topK{k: k}
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return t.items[j].ranksAbove(t.items[i]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK) Push(x any)         { t.items = append(t.items, x.(scoredChunk)) }

func (t *topK) Pop() any {
	n := len(t.items)
	item := t.items[n-1]
	t.items = t.items[:n-1]
	return item
}

func (t *topK) offer(c scoredChunk) {
	if t.k <= 0 {
		return
	}
	if len(t.items) < t.k {
		heap.Push(t, c)
		return
	}
	if c.ranksAbove(t.items[0]) {
		t.items[0] = c
		heap.Fix(t, 0)
	}
}

func (t *topK) sorted() []scoredChunk {
	out := make([]scoredChunk, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return out[i].ranksAbove(out[j]) })
	return out
}

// Package chromem implements driven.VectorIndex on chromem-go, an embedded
// vector database. The index can live in memory or persist to a directory.
package chromem

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// CollectionName is the chromem collection holding chunk vectors.
const CollectionName = "kbase-chunks"

// Ensure Index implements the interface.
var _ driven.RebuildableIndex = (*Index)(nil)

// Index is a chromem-go collection keyed by chunk ID.
// Zero vectors have no direction and are kept out of the collection, but
// they are still counted so Count matches the chunk store.
type Index struct {
	mu         sync.RWMutex
	db         *chromemgo.DB
	collection *chromemgo.Collection
	zero       map[int64]struct{}
}

// New creates an in-memory index.
func New() (*Index, error) {
	return newIndex(chromemgo.NewDB())
}

// NewPersistent creates an index stored under dir.
func NewPersistent(dir string) (*Index, error) {
	db, err := chromemgo.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector index at %s: %w", dir, err)
	}
	return newIndex(db)
}

func newIndex(db *chromemgo.DB) (*Index, error) {
	// Vectors are always supplied, so no embedding function is needed.
	c, err := db.GetOrCreateCollection(CollectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating vector collection: %w", err)
	}
	return &Index{db: db, collection: c, zero: make(map[int64]struct{})}, nil
}

// Add inserts or replaces the vector for a chunk.
func (x *Index) Add(ctx context.Context, chunk domain.EmbeddingChunk) error {
	return x.addDocuments(ctx, []domain.EmbeddingChunk{chunk})
}

func (x *Index) addDocuments(ctx context.Context, chunks []domain.EmbeddingChunk) error {
	docs := make([]chromemgo.Document, 0, len(chunks))
	var zero []int64
	for i := range chunks {
		c := &chunks[i]
		if isZero(c.Vector) {
			logger.Debug("vector index: not indexing zero vector for chunk %d", c.ID)
			zero = append(zero, c.ID)
			continue
		}
		docs = append(docs, chromemgo.Document{
			ID:        chunkKey(c.ID),
			Content:   c.Text,
			Embedding: domain.CopyVector(c.Vector),
			Metadata: map[string]string{
				"content_type": string(c.Content.Kind),
				"content_id":   strconv.FormatInt(c.Content.ID, 10),
			},
		})
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range zero {
		x.zero[id] = struct{}{}
	}
	if len(docs) == 0 {
		return nil
	}
	if err := x.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding %d vectors: %w", len(docs), err)
	}
	return nil
}

// Delete removes chunk vectors from the index. Unknown IDs are ignored.
func (x *Index) Delete(ctx context.Context, chunkIDs ...int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = chunkKey(id)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range chunkIDs {
		delete(x.zero, id)
	}
	if err := x.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting %d vectors: %w", len(ids), err)
	}
	return nil
}

// Search finds up to k nearest neighbours to the query vector.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || isZero(query) {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	// chromem rejects requests for more results than it holds.
	if n := x.collection.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := x.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			logger.Warn("vector index: ignoring unexpected document id %q", r.ID)
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: float64(r.Similarity)})
	}
	return hits, nil
}

// Count returns the number of chunks added, zero vectors included.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collection.Count() + len(x.zero)
}

// Rebuild replaces the index contents with every chunk in store.
// It returns the number of vectors indexed.
func (x *Index) Rebuild(ctx context.Context, store driven.EmbeddingStore) (int, error) {
	x.mu.Lock()
	if err := x.db.DeleteCollection(CollectionName); err != nil {
		x.mu.Unlock()
		return 0, fmt.Errorf("dropping vector collection: %w", err)
	}
	c, err := x.db.GetOrCreateCollection(CollectionName, nil, nil)
	if err != nil {
		x.mu.Unlock()
		return 0, fmt.Errorf("recreating vector collection: %w", err)
	}
	x.collection = c
	x.zero = make(map[int64]struct{})
	x.mu.Unlock()

	const batchSize = 256
	batch := make([]domain.EmbeddingChunk, 0, batchSize)
	err = store.ForEach(ctx, func(chunk *domain.EmbeddingChunk) error {
		batch = append(batch, *chunk)
		if len(batch) < batchSize {
			return nil
		}
		err := x.addDocuments(ctx, batch)
		batch = batch[:0]
		return err
	})
	if err == nil {
		err = x.addDocuments(ctx, batch)
	}
	if err != nil {
		return 0, err
	}

	n := x.Count()
	logger.Info("Vector index rebuilt with %d vectors", n)
	return n, nil
}

// Close releases resources. Persistent collections are already on disk.
func (x *Index) Close() error {
	return nil
}

func chunkKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isZero(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return len(v) == 0 || sum == 0 || math.IsNaN(sum)
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// chunkPurger removes an item's chunks from the store and the optional vector index.
type chunkPurger struct {
	embeddings  driven.EmbeddingStore
	vectorIndex driven.VectorIndex
}

func (p *chunkPurger) purge(ctx context.Context, ref domain.ContentRef) (int, error) {
	ids, err := p.embeddings.DeleteByContent(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of %s: %w", ref, err)
	}
	if p.vectorIndex != nil && len(ids) > 0 {
		if err := p.vectorIndex.Delete(ctx, ids...); err != nil {
			logger.Warn("vector index: failed to drop %d chunks of %s: %v", len(ids), ref, err)
		}
	}
	return len(ids), nil
}

// index adds chunks to the vector index. A failed add is logged and the rest
// are still attempted; search scans the store while the index lags behind.
func (p *chunkPurger) index(ctx context.Context, chunks []domain.EmbeddingChunk) {
	if p.vectorIndex == nil {
		return
	}
	failed := 0
	for i := range chunks {
		if err := p.vectorIndex.Add(ctx, chunks[i]); err != nil {
			logger.Debug("vector index: failed to add chunk %d: %v", chunks[i].ID, err)
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("vector index: %d of %d chunks not indexed", failed, len(chunks))
	}
}

// refLocks serialises mutating operations on the same content item.
type refLocks struct {
	mu    sync.Mutex
	locks map[domain.ContentRef]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (l *refLocks) lock(ref domain.ContentRef) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[domain.ContentRef]*refLock)
	}
	rl, ok := l.locks[ref]
	if !ok {
		rl = &refLock{}
		l.locks[ref] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, ref)
		}
		l.mu.Unlock()
	}
}

// nowUTC is the default service clock.
func nowUTC() time.Time {
	return time.Now().UTC()
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

// vectorIndex ranks stored chunks with pgvector's cosine distance operator.
// Chunks are indexed by being stored, so Add and Delete have nothing to do.
type vectorIndex struct {
	pool *pgxpool.Pool
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Add is a no-op; the chunk row is already searchable.
func (v *vectorIndex) Add(_ context.Context, _ domain.EmbeddingChunk) error {
	return nil
}

// Delete is a no-op; deleting the chunk row removes it from results.
func (v *vectorIndex) Delete(_ context.Context, _ ...int64) error {
	return nil
}

// Search returns up to k chunks nearest to query by cosine distance.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	rows, err := v.pool.Query(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM embedding_chunks
		WHERE vector_dims(embedding) = $2
		ORDER BY embedding <=> $1, id
		LIMIT $3
	`, pgvector.NewVector(query), len(query), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var hit driven.VectorHit
		if err := rows.Scan(&hit.ChunkID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("scanning vector hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector hits: %w", err)
	}
	logger.Debug("postgres: vector search returned %d of %d", len(hits), k)
	return hits, nil
}

// Count returns the number of stored chunks, or 0 if the count fails.
func (v *vectorIndex) Count() int {
	var n int
	if err := v.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM embedding_chunks`).Scan(&n); err != nil {
		logger.Warn("postgres: counting indexed vectors: %v", err)
		return 0
	}
	return n
}

// Close is a no-op; the pool belongs to the Store.
func (v *vectorIndex) Close() error {
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

const (
	chunkColumns = `id, content_type, content_id, chunk_index, chunk_text, embedding, created_at`

	dimensionKey = "dimension"

	forEachPageSize = 256
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	pool *pgxpool.Pool
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// AddChunk stores one chunk and assigns its ID.
func (s *embeddingStore) AddChunk(ctx context.Context, chunk *domain.EmbeddingChunk) error {
	if chunk == nil {
		return domain.ErrInvalidInput
	}
	stored, err := s.AddChunks(ctx, []domain.EmbeddingChunk{*chunk})
	if err != nil {
		return err
	}
	chunk.ID = stored[0].ID
	return nil
}

// AddChunks stores all chunks in one transaction or none of them.
// The corpus_meta row is locked for the duration so concurrent first
// batches agree on the dimension.
func (s *embeddingStore) AddChunks(
	ctx context.Context,
	chunks []domain.EmbeddingChunk,
) ([]domain.EmbeddingChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	for i := range chunks {
		if len(chunks[i].Vector) == 0 {
			return nil, &domain.ValidationError{Field: "vector", Reason: "must not be empty"}
		}
	}

	type key struct {
		ref   domain.ContentRef
		index int
	}
	seen := make(map[key]bool, len(chunks))
	for i := range chunks {
		k := key{ref: chunks[i].Content, index: chunks[i].ChunkIndex}
		if seen[k] {
			return nil, &domain.DuplicateChunkError{Ref: k.ref, Index: k.index}
		}
		seen[k] = true
	}

	out := make([]domain.EmbeddingChunk, len(chunks))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Claims the dimension if unset; rolled back with the batch on failure.
		if _, err := tx.Exec(ctx, `
			INSERT INTO corpus_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING
		`, dimensionKey, strconv.Itoa(len(chunks[0].Vector))); err != nil {
			return fmt.Errorf("claiming corpus dimension: %w", err)
		}
		dimension, err := readDimension(ctx, tx, true)
		if err != nil {
			return err
		}

		for i := range chunks {
			if got := len(chunks[i].Vector); got != dimension {
				return &domain.DimensionError{Expected: dimension, Got: got}
			}
		}

		for i := range chunks {
			c := chunks[i].Clone()
			err := tx.QueryRow(ctx, `
				INSERT INTO embedding_chunks (content_type, content_id, chunk_index, chunk_text, embedding, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, string(c.Content.Kind), c.Content.ID, c.ChunkIndex, c.Text,
				pgvector.NewVector(c.Vector), c.CreatedAt.UTC()).Scan(&c.ID)
			if isUniqueViolation(err) {
				return &domain.DuplicateChunkError{Ref: c.Content, Index: c.ChunkIndex}
			}
			if err != nil {
				return fmt.Errorf("inserting chunk %d of %s: %w", c.ChunkIndex, c.Content, err)
			}
			out[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByContent returns an item's chunks in ascending chunk index.
func (s *embeddingStore) ListByContent(
	ctx context.Context,
	ref domain.ContentRef,
) ([]domain.EmbeddingChunk, error) {
	return queryChunks(ctx, s.pool, `
		SELECT `+chunkColumns+` FROM embedding_chunks
		WHERE content_type = $1 AND content_id = $2
		ORDER BY chunk_index
	`, string(ref.Kind), ref.ID)
}

// ListAll returns every chunk in ascending ID.
func (s *embeddingStore) ListAll(ctx context.Context) ([]domain.EmbeddingChunk, error) {
	return queryChunks(ctx, s.pool, `SELECT `+chunkColumns+` FROM embedding_chunks ORDER BY id`)
}

// ForEach pages through chunks in ascending ID.
func (s *embeddingStore) ForEach(ctx context.Context, fn func(chunk *domain.EmbeddingChunk) error) error {
	var after int64
	for {
		page, err := queryChunks(ctx, s.pool, `
			SELECT `+chunkColumns+` FROM embedding_chunks
			WHERE id > $1 ORDER BY id LIMIT $2
		`, after, forEachPageSize)
		if err != nil {
			return err
		}
		for i := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(&page[i]); err != nil {
				return err
			}
		}
		if len(page) < forEachPageSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

// GetChunk retrieves a chunk by ID.
func (s *embeddingStore) GetChunk(ctx context.Context, id int64) (*domain.EmbeddingChunk, error) {
	chunk, err := scanChunk(s.pool.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM embedding_chunks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// CountAll returns the number of stored chunks.
func (s *embeddingStore) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM embedding_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// TotalStorageBytes sums 4 bytes per component plus the text bytes of every chunk.
func (s *embeddingStore) TotalStorageBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(4 * vector_dims(embedding) + octet_length(chunk_text)), 0)::BIGINT
		FROM embedding_chunks
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing chunk storage: %w", err)
	}
	return total, nil
}

// Dimension returns the corpus dimension, or 0 if no chunk was ever stored.
func (s *embeddingStore) Dimension(ctx context.Context) (int, error) {
	return readDimension(ctx, s.pool, false)
}

// DeleteByContent removes an item's chunks and returns their IDs in ascending order.
func (s *embeddingStore) DeleteByContent(ctx context.Context, ref domain.ContentRef) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM embedding_chunks WHERE content_type = $1 AND content_id = $2 RETURNING id
	`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("deleting chunks of %s: %w", ref, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collecting deleted ids: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readDimension(ctx context.Context, q querier, lock bool) (int, error) {
	query := `SELECT value FROM corpus_meta WHERE key = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var value string
	err := q.QueryRow(ctx, query, dimensionKey).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading corpus dimension: %w", err)
	}
	dimension, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing corpus dimension %q: %w", value, err)
	}
	return dimension, nil
}

func queryChunks(ctx context.Context, q querier, query string, args ...any) ([]domain.EmbeddingChunk, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.EmbeddingChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// scanChunk scans an embedding_chunks row. pgx.ErrNoRows is returned unwrapped.
func scanChunk(row pgx.Row) (*domain.EmbeddingChunk, error) {
	var (
		chunk domain.EmbeddingChunk
		kind  string
		emb   pgvector.Vector
	)
	err := row.Scan(&chunk.ID, &kind, &chunk.Content.ID, &chunk.ChunkIndex, &chunk.Text, &emb, &chunk.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Content.Kind = domain.ContentKind(kind)
	chunk.Vector = emb.Slice()
	chunk.CreatedAt = chunk.CreatedAt.UTC()
	return &chunk, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

const (
	chunkColumns = `id, content_type, content_id, chunk_index, chunk_text, embedding, created_at`

	// dimensionKey is the corpus_meta row holding the corpus dimension.
	dimensionKey = "dimension"

	// forEachPageSize bounds how many chunks ForEach holds at once.
	forEachPageSize = 256
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
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
func (s *embeddingStore) AddChunks(
	ctx context.Context,
	chunks []domain.EmbeddingChunk,
) ([]domain.EmbeddingChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	out := make([]domain.EmbeddingChunk, len(chunks))
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		stored, err := readDimension(ctx, tx)
		if err != nil {
			return err
		}
		dimension := stored
		if dimension == 0 {
			dimension = len(chunks[0].Vector)
		}

		type key struct {
			ref   domain.ContentRef
			index int
		}
		seen := make(map[key]bool, len(chunks))
		for i := range chunks {
			c := &chunks[i]
			if len(c.Vector) == 0 {
				return &domain.ValidationError{Field: "vector", Reason: "must not be empty"}
			}
			if len(c.Vector) != dimension {
				return &domain.DimensionError{Expected: dimension, Got: len(c.Vector)}
			}
			k := key{ref: c.Content, index: c.ChunkIndex}
			exists, err := chunkExists(ctx, tx, c.Content, c.ChunkIndex)
			if err != nil {
				return err
			}
			if exists || seen[k] {
				return &domain.DuplicateChunkError{Ref: c.Content, Index: c.ChunkIndex}
			}
			seen[k] = true
		}

		if stored == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO corpus_meta (key, value) VALUES (?, ?)`,
				dimensionKey, strconv.Itoa(dimension)); err != nil {
				return fmt.Errorf("fixing corpus dimension: %w", err)
			}
		}

		for i := range chunks {
			c := chunks[i].Clone()
			res, err := tx.ExecContext(ctx, `
				INSERT INTO embedding_chunks (content_type, content_id, chunk_index, chunk_text,
					embedding, dimension, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, string(c.Content.Kind), c.Content.ID, c.ChunkIndex, c.Text,
				float32SliceToBytes(c.Vector), len(c.Vector), formatTime(c.CreatedAt))
			if err != nil {
				return fmt.Errorf("inserting chunk %d of %s: %w", c.ChunkIndex, c.Content, err)
			}
			if c.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("reading inserted id: %w", err)
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
	return queryChunks(ctx, s.store.db, `
		SELECT `+chunkColumns+` FROM embedding_chunks
		WHERE content_type = ? AND content_id = ?
		ORDER BY chunk_index
	`, string(ref.Kind), ref.ID)
}

// ListAll returns every chunk in ascending ID.
func (s *embeddingStore) ListAll(ctx context.Context) ([]domain.EmbeddingChunk, error) {
	return queryChunks(ctx, s.store.db, `SELECT `+chunkColumns+` FROM embedding_chunks ORDER BY id`)
}

// ForEach pages through chunks in ascending ID. fn runs with no open cursor.
func (s *embeddingStore) ForEach(ctx context.Context, fn func(chunk *domain.EmbeddingChunk) error) error {
	var after int64
	for {
		page, err := queryChunks(ctx, s.store.db, `
			SELECT `+chunkColumns+` FROM embedding_chunks
			WHERE id > ? ORDER BY id LIMIT ?
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
	chunk, err := scanChunk(s.store.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM embedding_chunks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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
	if err := s.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// TotalStorageBytes sums 4 bytes per component plus the text bytes of every chunk.
func (s *embeddingStore) TotalStorageBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(4 * dimension + LENGTH(CAST(chunk_text AS BLOB))), 0) FROM embedding_chunks
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing chunk storage: %w", err)
	}
	return total, nil
}

// Dimension returns the corpus dimension, or 0 if no chunk was ever stored.
func (s *embeddingStore) Dimension(ctx context.Context) (int, error) {
	return readDimension(ctx, s.store.db)
}

// DeleteByContent removes an item's chunks and returns their IDs in ascending order.
// The corpus dimension is kept.
func (s *embeddingStore) DeleteByContent(ctx context.Context, ref domain.ContentRef) ([]int64, error) {
	var ids []int64
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM embedding_chunks WHERE content_type = ? AND content_id = ? ORDER BY id
		`, string(ref.Kind), ref.ID)
		if err != nil {
			return fmt.Errorf("querying chunks of %s: %w", ref, err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning chunk id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating chunk ids: %w", err)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM embedding_chunks WHERE content_type = ? AND content_id = ?`,
			string(ref.Kind), ref.ID); err != nil {
			return fmt.Errorf("deleting chunks of %s: %w", ref, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func readDimension(ctx context.Context, q queryer) (int, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM corpus_meta WHERE key = ?`, dimensionKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
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

func chunkExists(ctx context.Context, q queryer, ref domain.ContentRef, index int) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM embedding_chunks WHERE content_type = ? AND content_id = ? AND chunk_index = ?
	`, string(ref.Kind), ref.ID, index).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking chunk index: %w", err)
	}
	return true, nil
}

func queryChunks(ctx context.Context, q queryer, query string, args ...any) ([]domain.EmbeddingChunk, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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

// scanChunk scans an embedding_chunks row. sql.ErrNoRows is returned unwrapped.
func scanChunk(row rowScanner) (*domain.EmbeddingChunk, error) {
	var (
		chunk   domain.EmbeddingChunk
		kind    string
		blob    []byte
		created string
	)
	err := row.Scan(&chunk.ID, &kind, &chunk.Content.ID, &chunk.ChunkIndex, &chunk.Text, &blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Content.Kind = domain.ContentKind(kind)
	chunk.Vector = bytesToFloat32Slice(blob)
	if chunk.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &chunk, nil
}

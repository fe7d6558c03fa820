package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

const (
	fileColumns = `id, filename, original_name, file_size, mime_type, storage_path,
		processing_status, created_at, updated_at`
	textColumns = `id, title, content, content_type, content_hash,
		processing_status, created_at, updated_at`
)

// contentStore implements driven.ContentRepository.
type contentStore struct {
	pool *pgxpool.Pool
}

var _ driven.ContentRepository = (*contentStore)(nil)

// Insert stores a new item and assigns its ID within its family.
func (s *contentStore) Insert(ctx context.Context, item *domain.ContentItem) error {
	if item == nil {
		return domain.ErrInvalidInput
	}
	if !item.Kind.IsValid() {
		return &domain.ValidationError{Field: "kind", Reason: "unknown content kind " + string(item.Kind)}
	}
	if item.Status == "" {
		item.Status = domain.StatusPending
	}

	var row pgx.Row
	if item.Kind == domain.KindFile {
		if item.File == nil {
			return &domain.ValidationError{Field: "file", Reason: "missing file attributes"}
		}
		row = s.pool.QueryRow(ctx, `
			INSERT INTO file_uploads (filename, original_name, file_size, mime_type, storage_path,
				processing_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, item.File.Filename, item.File.OriginalName, item.File.Size, item.File.MIMEType,
			item.File.StoragePath, string(item.Status), item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	} else {
		if item.Text == nil {
			return &domain.ValidationError{Field: "text", Reason: "missing text attributes"}
		}
		row = s.pool.QueryRow(ctx, `
			INSERT INTO text_content (title, content, content_type, content_hash,
				processing_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, item.Text.Title, item.Text.Body, string(item.Kind), item.Text.ContentHash,
			string(item.Status), item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	}
	if err := row.Scan(&item.ID); err != nil {
		return fmt.Errorf("inserting %s item: %w", item.Kind, err)
	}
	return nil
}

// Get retrieves an item by reference. The kind must match exactly.
func (s *contentStore) Get(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	var (
		item *domain.ContentItem
		err  error
	)
	switch ref.Kind {
	case domain.KindFile:
		item, err = scanFile(s.pool.QueryRow(ctx,
			`SELECT `+fileColumns+` FROM file_uploads WHERE id = $1`, ref.ID))
	case domain.KindText, domain.KindDocument:
		item, err = scanText(s.pool.QueryRow(ctx,
			`SELECT `+textColumns+` FROM text_content WHERE id = $1 AND content_type = $2`,
			ref.ID, string(ref.Kind)))
	default:
		return nil, &domain.NotFoundError{Ref: ref}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Ref: ref}
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns items of a kind, newest first.
func (s *contentStore) List(ctx context.Context, kind domain.ContentKind) ([]domain.ContentItem, error) {
	switch kind {
	case domain.KindFile:
		return s.queryFiles(ctx, `SELECT `+fileColumns+` FROM file_uploads ORDER BY created_at DESC, id DESC`)
	case domain.KindText:
		return s.queryTexts(ctx, `SELECT `+textColumns+` FROM text_content ORDER BY created_at DESC, id DESC`)
	case domain.KindDocument:
		return s.queryTexts(ctx,
			`SELECT `+textColumns+` FROM text_content WHERE content_type = $1 ORDER BY created_at DESC, id DESC`,
			string(domain.KindDocument))
	default:
		return nil, &domain.ValidationError{Field: "kind", Reason: "unknown content kind " + string(kind)}
	}
}

// ListByStatus returns items of both families in any of the given states, oldest first.
func (s *contentStore) ListByStatus(
	ctx context.Context,
	statuses ...domain.ProcessingStatus,
) ([]domain.ContentItem, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	want := statusStrings(statuses)

	files, err := s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM file_uploads WHERE processing_status = ANY($1)`, want)
	if err != nil {
		return nil, err
	}
	texts, err := s.queryTexts(ctx,
		`SELECT `+textColumns+` FROM text_content WHERE processing_status = ANY($1)`, want)
	if err != nil {
		return nil, err
	}

	items := append(files, texts...)
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	return items, nil
}

// FindByHash returns text items whose content hash equals hash, lowest ID first.
func (s *contentStore) FindByHash(ctx context.Context, hash string) ([]domain.ContentItem, error) {
	return s.queryTexts(ctx,
		`SELECT `+textColumns+` FROM text_content WHERE content_hash = $1 ORDER BY id`, hash)
}

// UpdateStatus sets the status if the current one is expected, in one statement.
func (s *contentStore) UpdateStatus(
	ctx context.Context,
	ref domain.ContentRef,
	expected []domain.ProcessingStatus,
	next domain.ProcessingStatus,
	at time.Time,
) (*domain.ContentItem, error) {
	table, columns, scan := "file_uploads", fileColumns, scanFile
	args := []any{string(next), at.UTC(), ref.ID}
	where := "id = $3"
	if ref.Kind != domain.KindFile {
		table, columns, scan = "text_content", textColumns, scanText
		args = append(args, string(ref.Kind))
		where += " AND content_type = $4"
	}
	if len(expected) > 0 {
		args = append(args, statusStrings(expected))
		where += " AND processing_status = ANY($" + strconv.Itoa(len(args)) + ")"
	}

	item, err := scan(s.pool.QueryRow(ctx, `
		UPDATE `+table+`
		SET processing_status = $1, updated_at = GREATEST($2, created_at)
		WHERE `+where+`
		RETURNING `+columns, args...))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating status of %s: %w", ref, err)
	}

	current, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return nil, &domain.TransitionError{Ref: ref, From: current.Status, To: next}
}

func (s *contentStore) queryFiles(ctx context.Context, query string, args ...any) ([]domain.ContentItem, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}
	return items, nil
}

func (s *contentStore) queryTexts(ctx context.Context, query string, args ...any) ([]domain.ContentItem, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying text entries: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanText(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating text entries: %w", err)
	}
	return items, nil
}

// scanFile scans a file_uploads row. pgx.ErrNoRows is returned unwrapped.
func scanFile(row pgx.Row) (*domain.ContentItem, error) {
	var (
		item   domain.ContentItem
		file   domain.FileAttributes
		status string
	)
	err := row.Scan(&item.ID, &file.Filename, &file.OriginalName, &file.Size, &file.MIMEType,
		&file.StoragePath, &status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning file: %w", err)
	}

	item.Kind = domain.KindFile
	item.Status = domain.ProcessingStatus(status)
	item.File = &file
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

// scanText scans a text_content row. pgx.ErrNoRows is returned unwrapped.
func scanText(row pgx.Row) (*domain.ContentItem, error) {
	var (
		item         domain.ContentItem
		text         domain.TextAttributes
		kind, status string
	)
	err := row.Scan(&item.ID, &text.Title, &text.Body, &kind, &text.ContentHash,
		&status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning text entry: %w", err)
	}

	item.Kind = domain.ContentKind(kind)
	item.Status = domain.ProcessingStatus(status)
	item.Text = &text
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func statusStrings(statuses []domain.ProcessingStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

const (
	fileColumns = `id, filename, original_name, file_size, mime_type, storage_path,
		processing_status, created_at, updated_at`
	textColumns = `id, title, content, content_type, content_hash,
		processing_status, created_at, updated_at`
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// contentStore implements driven.ContentRepository.
type contentStore struct {
	store *Store
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

	var (
		res sql.Result
		err error
	)
	if item.Kind == domain.KindFile {
		if item.File == nil {
			return &domain.ValidationError{Field: "file", Reason: "missing file attributes"}
		}
		res, err = s.store.db.ExecContext(ctx, `
			INSERT INTO file_uploads (filename, original_name, file_size, mime_type, storage_path,
				processing_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, item.File.Filename, item.File.OriginalName, item.File.Size, item.File.MIMEType,
			item.File.StoragePath, string(item.Status), formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	} else {
		if item.Text == nil {
			return &domain.ValidationError{Field: "text", Reason: "missing text attributes"}
		}
		res, err = s.store.db.ExecContext(ctx, `
			INSERT INTO text_content (title, content, content_type, content_hash,
				processing_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, item.Text.Title, item.Text.Body, string(item.Kind), item.Text.ContentHash,
			string(item.Status), formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	}
	if err != nil {
		return fmt.Errorf("inserting %s item: %w", item.Kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	item.ID = id
	return nil
}

// Get retrieves an item by reference. The kind must match exactly.
func (s *contentStore) Get(ctx context.Context, ref domain.ContentRef) (*domain.ContentItem, error) {
	return getItem(ctx, s.store.db, ref)
}

// List returns items of a kind, newest first.
func (s *contentStore) List(ctx context.Context, kind domain.ContentKind) ([]domain.ContentItem, error) {
	switch kind {
	case domain.KindFile:
		return queryFiles(ctx, s.store.db,
			`SELECT `+fileColumns+` FROM file_uploads ORDER BY created_at DESC, id DESC`)
	case domain.KindText:
		return queryTexts(ctx, s.store.db,
			`SELECT `+textColumns+` FROM text_content ORDER BY created_at DESC, id DESC`)
	case domain.KindDocument:
		return queryTexts(ctx, s.store.db,
			`SELECT `+textColumns+` FROM text_content WHERE content_type = ? ORDER BY created_at DESC, id DESC`,
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
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	in := placeholders(len(statuses))

	files, err := queryFiles(ctx, s.store.db,
		`SELECT `+fileColumns+` FROM file_uploads WHERE processing_status IN (`+in+`)`, args...)
	if err != nil {
		return nil, err
	}
	texts, err := queryTexts(ctx, s.store.db,
		`SELECT `+textColumns+` FROM text_content WHERE processing_status IN (`+in+`)`, args...)
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
	return queryTexts(ctx, s.store.db,
		`SELECT `+textColumns+` FROM text_content WHERE content_hash = ? ORDER BY id`, hash)
}

// UpdateStatus sets the status if the current one is expected.
// The check and the write are a single conditional UPDATE.
func (s *contentStore) UpdateStatus(
	ctx context.Context,
	ref domain.ContentRef,
	expected []domain.ProcessingStatus,
	next domain.ProcessingStatus,
	at time.Time,
) (*domain.ContentItem, error) {
	var updated *domain.ContentItem
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		query, args := updateStatusQuery(ref, expected, next, at)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("updating status of %s: %w", ref, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reading affected rows: %w", err)
		}

		item, err := getItem(ctx, tx, ref)
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.TransitionError{Ref: ref, From: item.Status, To: next}
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// updateStatusQuery builds the conditional UPDATE for a reference.
// updated_at never moves before created_at.
func updateStatusQuery(
	ref domain.ContentRef,
	expected []domain.ProcessingStatus,
	next domain.ProcessingStatus,
	at time.Time,
) (string, []any) {
	table := "file_uploads"
	where := "id = ?"
	args := []any{string(next), formatTime(at), ref.ID}
	if ref.Kind != domain.KindFile {
		table = "text_content"
		where += " AND content_type = ?"
		args = append(args, string(ref.Kind))
	}
	if len(expected) > 0 {
		where += " AND processing_status IN (" + placeholders(len(expected)) + ")"
		for _, st := range expected {
			args = append(args, string(st))
		}
	}
	query := `UPDATE ` + table + ` SET processing_status = ?, updated_at = MAX(?, created_at) WHERE ` + where
	return query, args
}

// getItem loads one item by reference.
func getItem(ctx context.Context, q queryer, ref domain.ContentRef) (*domain.ContentItem, error) {
	var (
		item *domain.ContentItem
		err  error
	)
	switch ref.Kind {
	case domain.KindFile:
		item, err = scanFile(q.QueryRowContext(ctx,
			`SELECT `+fileColumns+` FROM file_uploads WHERE id = ?`, ref.ID))
	case domain.KindText, domain.KindDocument:
		item, err = scanText(q.QueryRowContext(ctx,
			`SELECT `+textColumns+` FROM text_content WHERE id = ? AND content_type = ?`, ref.ID, string(ref.Kind)))
	default:
		return nil, &domain.NotFoundError{Ref: ref}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Ref: ref}
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func queryFiles(ctx context.Context, q queryer, query string, args ...any) ([]domain.ContentItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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

func queryTexts(ctx context.Context, q queryer, query string, args ...any) ([]domain.ContentItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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

// scanFile scans a file_uploads row. sql.ErrNoRows is returned unwrapped.
func scanFile(row rowScanner) (*domain.ContentItem, error) {
	var (
		item             domain.ContentItem
		file             domain.FileAttributes
		status           string
		created, updated string
	)
	err := row.Scan(&item.ID, &file.Filename, &file.OriginalName, &file.Size, &file.MIMEType,
		&file.StoragePath, &status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning file: %w", err)
	}

	item.Kind = domain.KindFile
	item.Status = domain.ProcessingStatus(status)
	item.File = &file
	if err := scanTimes(&item, created, updated); err != nil {
		return nil, err
	}
	return &item, nil
}

// scanText scans a text_content row. sql.ErrNoRows is returned unwrapped.
func scanText(row rowScanner) (*domain.ContentItem, error) {
	var (
		item             domain.ContentItem
		text             domain.TextAttributes
		kind, status     string
		created, updated string
	)
	err := row.Scan(&item.ID, &text.Title, &text.Body, &kind, &text.ContentHash,
		&status, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning text entry: %w", err)
	}

	item.Kind = domain.ContentKind(kind)
	item.Status = domain.ProcessingStatus(status)
	item.Text = &text
	if err := scanTimes(&item, created, updated); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanTimes(item *domain.ContentItem, created, updated string) error {
	var err error
	if item.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	if item.UpdatedAt, err = parseTime(updated); err != nil {
		return err
	}
	return nil
}

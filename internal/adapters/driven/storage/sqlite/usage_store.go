package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// usageStore implements driven.UsageStore.
type usageStore struct {
	store *Store
}

var _ driven.UsageStore = (*usageStore)(nil)

// SaveSnapshot creates or replaces the rollup for stat.Date.
func (s *usageStore) SaveSnapshot(ctx context.Context, stat domain.UsageStat) error {
	if stat.Date == "" {
		return &domain.ValidationError{Field: "date", Reason: "must not be empty"}
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO usage_stats (date, total_files_uploaded, total_text_entries, total_embeddings_created,
			total_data_processed_mb, storage_used_mb, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_files_uploaded = excluded.total_files_uploaded,
			total_text_entries = excluded.total_text_entries,
			total_embeddings_created = excluded.total_embeddings_created,
			total_data_processed_mb = excluded.total_data_processed_mb,
			storage_used_mb = excluded.storage_used_mb,
			created_at = excluded.created_at
	`, stat.Date, stat.FilesUploaded, stat.TextEntries, stat.EmbeddingsCreated,
		stat.DataProcessedMB, stat.StorageUsedMB, formatTime(stat.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving usage snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns rollups with from <= date <= to, oldest first.
func (s *usageStore) ListSnapshots(ctx context.Context, from, to string) ([]domain.UsageStat, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT date, total_files_uploaded, total_text_entries, total_embeddings_created,
			total_data_processed_mb, storage_used_mb, created_at
		FROM usage_stats
		WHERE date >= ? AND date <= ?
		ORDER BY date
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying usage snapshots: %w", err)
	}
	defer rows.Close()

	var stats []domain.UsageStat //nolint:prealloc // size unknown from query
	for rows.Next() {
		var stat domain.UsageStat
		var created string
		if err := rows.Scan(&stat.Date, &stat.FilesUploaded, &stat.TextEntries, &stat.EmbeddingsCreated,
			&stat.DataProcessedMB, &stat.StorageUsedMB, &created); err != nil {
			return nil, fmt.Errorf("scanning usage snapshot: %w", err)
		}
		if stat.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage snapshots: %w", err)
	}
	return stats, nil
}

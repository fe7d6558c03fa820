package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
)

// usageStore implements driven.UsageStore.
type usageStore struct {
	pool *pgxpool.Pool
}

var _ driven.UsageStore = (*usageStore)(nil)

// SaveSnapshot creates or replaces the rollup for stat.Date.
func (s *usageStore) SaveSnapshot(ctx context.Context, stat domain.UsageStat) error {
	if stat.Date == "" {
		return &domain.ValidationError{Field: "date", Reason: "must not be empty"}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_stats (date, total_files_uploaded, total_text_entries, total_embeddings_created,
			total_data_processed_mb, storage_used_mb, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date) DO UPDATE SET
			total_files_uploaded = EXCLUDED.total_files_uploaded,
			total_text_entries = EXCLUDED.total_text_entries,
			total_embeddings_created = EXCLUDED.total_embeddings_created,
			total_data_processed_mb = EXCLUDED.total_data_processed_mb,
			storage_used_mb = EXCLUDED.storage_used_mb,
			created_at = EXCLUDED.created_at
	`, stat.Date, stat.FilesUploaded, stat.TextEntries, stat.EmbeddingsCreated,
		stat.DataProcessedMB, stat.StorageUsedMB, stat.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving usage snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns rollups with from <= date <= to, oldest first.
func (s *usageStore) ListSnapshots(ctx context.Context, from, to string) ([]domain.UsageStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, total_files_uploaded, total_text_entries, total_embeddings_created,
			total_data_processed_mb, storage_used_mb, created_at
		FROM usage_stats
		WHERE date >= $1 AND date <= $2
		ORDER BY date
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying usage snapshots: %w", err)
	}
	defer rows.Close()

	var stats []domain.UsageStat //nolint:prealloc // size unknown from query
	for rows.Next() {
		var stat domain.UsageStat
		if err := rows.Scan(&stat.Date, &stat.FilesUploaded, &stat.TextEntries, &stat.EmbeddingsCreated,
			&stat.DataProcessedMB, &stat.StorageUsedMB, &stat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage snapshot: %w", err)
		}
		stat.CreatedAt = stat.CreatedAt.UTC()
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage snapshots: %w", err)
	}
	return stats, nil
}

package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/logger"
)

//go:embed scripts/schema.sql
var schemaFS embed.FS

// schemaVersion is the version recorded by scripts/schema.sql.
const schemaVersion = 1

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Store holds a connection pool and hands out the store interfaces.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and creates the schema if it is missing.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ContentStore returns a ContentRepository backed by this store.
func (s *Store) ContentStore() driven.ContentRepository {
	return &contentStore{pool: s.pool}
}

// EmbeddingStore returns an EmbeddingStore backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{pool: s.pool}
}

// VectorIndex returns a pgvector-backed index over the stored chunks.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{pool: s.pool}
}

// UsageStore returns a UsageStore backed by this store.
func (s *Store) UsageStore() driven.UsageStore {
	return &usageStore{pool: s.pool}
}

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{pool: s.pool}
}

// ensureSchema runs scripts/schema.sql unless the current version is recorded.
func (s *Store) ensureSchema(ctx context.Context) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(bootCtx, `
		SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'kbase_meta')
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if exists {
		var current bool
		err := s.pool.QueryRow(bootCtx,
			`SELECT EXISTS (SELECT 1 FROM kbase_meta WHERE version = $1)`, schemaVersion).Scan(&current)
		if err != nil {
			return fmt.Errorf("meta version check failed: %w", err)
		}
		if current {
			return nil
		}
	}

	logger.Debug("postgres: applying schema version %d", schemaVersion)
	script, err := schemaFS.ReadFile("scripts/schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	return pgx.BeginFunc(bootCtx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(bootCtx, string(script)); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
		return nil
	})
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Command kbase is a personal knowledge base with semantic search.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/kbase/internal/adapters/driven/ai"
	"github.com/custodia-labs/kbase/internal/adapters/driven/config/env"
	"github.com/custodia-labs/kbase/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/kbase/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/kbase/internal/adapters/driven/vector/chromem"
	"github.com/custodia-labs/kbase/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/services"
	"github.com/custodia-labs/kbase/internal/logger"
	"github.com/custodia-labs/kbase/internal/normalisers"
	"github.com/custodia-labs/kbase/internal/postprocessors"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := env.LoadDotEnv(); err != nil {
		logger.Warn("%v", err)
	}

	fileStore, err := file.NewConfigStore(os.Getenv("KBASE_HOME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	settingsSvc := services.NewSettingsService(env.NewConfigStore(fileStore))
	settings, err := settingsSvc.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	stores, err := openStorage(ctx, &settings.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer stores.close()

	embedder, err := ai.CreateEmbeddingService(&settings.Embedding, settings.Pipeline.RequestsPerSecond)
	if err != nil {
		logger.Warn("embedding service unavailable: %v", err)
		embedder = nil
	}
	if embedder != nil {
		defer embedder.Close()
	}

	if stores.vectors == nil && settings.Search.UseVectorIndex {
		dir, err := vectorDir(settings.Storage.DataDir)
		if err == nil {
			stores.vectors, err = chromem.NewPersistent(dir)
		}
		if err != nil {
			logger.Warn("vector index disabled: %v", err)
			stores.vectors = nil
		}
	}

	gate := services.NewCorpusGate()
	contentSvc := services.NewContentService(stores.content, stores.embeddings)
	contentSvc.SetCorpusGate(gate)
	coordinator := services.NewCoordinator(stores.content, stores.embeddings)
	coordinator.SetCorpusGate(gate)
	searchSvc := services.NewSearchService(stores.content, stores.embeddings, embedder)
	if stores.vectors != nil {
		contentSvc.SetVectorIndex(stores.vectors)
		coordinator.SetVectorIndex(stores.vectors)
		searchSvc.SetVectorIndex(stores.vectors)
		if err := searchSvc.SyncVectorIndex(ctx); err != nil {
			logger.Warn("%v; searches will scan the store", err)
		}
	}
	dashboardSvc := services.NewDashboardService(stores.content, stores.embeddings, stores.usage,
		domain.DashboardOptions{
			RecentWindow: settings.Dashboard.RecentWindow,
			Days:         settings.Dashboard.Days,
		})
	dashboardSvc.SetCorpusGate(gate)

	chunker, err := postprocessors.FromSettings(settings.Pipeline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	pipeline := services.NewPipeline(stores.content, coordinator, embedder,
		normalisers.Defaults(), chunker, settings.Pipeline.Workers)

	schedulerConfig := settingsSvc.GetSchedulerConfig()
	scheduler := services.NewScheduler(schedulerConfig, stores.scheduler, pipeline, dashboardSvc)

	svc := &cli.Services{
		Content:         contentSvc,
		Coordinator:     coordinator,
		Search:          searchSvc,
		Dashboard:       dashboardSvc,
		Settings:        settingsSvc,
		Scheduler:       scheduler,
		SchedulerConfig: schedulerConfig,
	}
	// Without embeddings the pipeline can only fail items, so it is left out.
	if embedder != nil {
		svc.Pipeline = pipeline
	}
	cli.SetServices(svc)
	cli.SetVersion(version)

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// storage bundles the driven stores of one backend.
type storage struct {
	content    driven.ContentRepository
	embeddings driven.EmbeddingStore
	usage      driven.UsageStore
	scheduler  driven.SchedulerStore
	vectors    driven.VectorIndex
	closers    []func() error
}

func (s *storage) close() {
	if s.vectors != nil {
		s.closers = append(s.closers, s.vectors.Close)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("closing storage: %v", err)
		}
	}
}

// openStorage opens the configured backend.
func openStorage(ctx context.Context, cfg *domain.StorageSettings) (*storage, error) {
	switch cfg.Backend {
	case domain.StorageSQLite, "":
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Debug("Using SQLite store at %s", store.Path())
		return &storage{
			content:    store.ContentStore(),
			embeddings: store.EmbeddingStore(),
			usage:      store.UsageStore(),
			scheduler:  store.SchedulerStore(),
			closers:    []func() error{store.Close},
		}, nil

	case domain.StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres backend requires storage.postgres_dsn or DATABASE_URL")
		}
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		logger.Debug("Using PostgreSQL store")
		return &storage{
			content:    store.ContentStore(),
			embeddings: store.EmbeddingStore(),
			usage:      store.UsageStore(),
			scheduler:  store.SchedulerStore(),
			vectors:    store.VectorIndex(),
			closers:    []func() error{store.Close},
		}, nil

	case domain.StorageMemory:
		logger.Warn("Using in-memory store; content is lost on exit")
		return &storage{
			content:    memory.NewContentStore(),
			embeddings: memory.NewEmbeddingStore(),
			usage:      memory.NewUsageStore(),
			scheduler:  memory.NewSchedulerStore(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// vectorDir is where the persistent vector index lives.
func vectorDir(dataDir string) (string, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".kbase", "data")
	}
	return filepath.Join(dataDir, "vectors"), nil
}

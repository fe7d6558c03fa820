package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/kbase/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/kbase/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the JSON API and runs background processing.

The scheduler embeds pending items and stores daily usage rollups
while the server is up. Stop with Ctrl+C.`,
	RunE: runServe,
}

var (
	servePort    int
	serveOrigins []string
	serveNoSched bool
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from settings, 2022)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default any)")
	serveCmd.Flags().BoolVar(&serveNoSched, "no-scheduler", false, "do not run background tasks")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	port := servePort
	if port == 0 && settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			port = s.Server.Port
		}
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Content:     contentService,
		Coordinator: coordinator,
		Search:      searchService,
		Dashboard:   dashboardService,
		Pipeline:    pipeline,
	}, httpapi.Options{Port: port, AllowedOrigins: serveOrigins})
	if err != nil {
		return fmt.Errorf("creating HTTP API: %w", err)
	}

	g, ctx := errgroup.WithContext(commandContext(cmd))
	g.Go(func() error {
		return server.Run(ctx)
	})
	if !serveNoSched {
		g.Go(func() error {
			return runScheduler(ctx)
		})
	}

	cmd.Printf("kbase API listening on http://localhost%s\n", server.Addr())
	return g.Wait()
}

// runScheduler runs the scheduler until ctx is done.
// A missing or disabled scheduler returns immediately.
func runScheduler(ctx context.Context) error {
	if scheduler == nil || !schedulerConfig.Enabled {
		return nil
	}
	go func() {
		<-ctx.Done()
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop: %v", err)
		}
	}()
	err := scheduler.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startScheduler runs the scheduler in the background and returns its stop function.
func startScheduler(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := runScheduler(ctx); err != nil {
			logger.Warn("scheduler stopped: %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

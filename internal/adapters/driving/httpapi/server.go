package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Default server values.
const (
	DefaultPort            = 2022
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// ErrMissingPort is returned when a required driving port is nil.
var ErrMissingPort = errors.New("httpapi: required service missing")

// Ports aggregates the driving ports the HTTP API serves.
type Ports struct {
	Content     driving.ContentService
	Coordinator driving.ProcessingCoordinator
	Search      driving.SearchService
	Dashboard   driving.DashboardService

	// Pipeline is optional; without it POST /api/process answers 503.
	Pipeline driving.Pipeline
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Content == nil:
		return fmt.Errorf("%w: content", ErrMissingPort)
	case p.Coordinator == nil:
		return fmt.Errorf("%w: coordinator", ErrMissingPort)
	case p.Search == nil:
		return fmt.Errorf("%w: search", ErrMissingPort)
	case p.Dashboard == nil:
		return fmt.Errorf("%w: dashboard", ErrMissingPort)
	}
	return nil
}

// Options configures the server.
type Options struct {
	// Port to listen on (default 2022).
	Port int

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string

	// RequestTimeout bounds each request (default 60s).
	RequestTimeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	ports   *Ports
	opts    Options
	handler http.Handler
	now     func() time.Time
}

// NewServer builds the router. It fails if a required port is missing.
func NewServer(ports *Ports, opts Options) (*Server, error) {
	if ports == nil {
		return nil, fmt.Errorf("%w: ports", ErrMissingPort)
	}
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{ports: ports, opts: opts, now: time.Now}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.opts.Port)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if logger.IsVerbose() {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthcheck", s.healthcheck)

	r.Route("/api", func(api chi.Router) {
		api.Post("/files", s.createFile)
		api.Get("/files", s.listKind(domain.KindFile))
		api.Post("/texts", s.createText)
		api.Get("/texts", s.listKind(domain.KindText))

		api.Route("/content/{kind}/{id}", func(item chi.Router) {
			item.Get("/", s.getContent)
			item.Post("/begin", s.beginProcessing)
			item.Post("/complete", s.completeProcessing)
			item.Post("/fail", s.failProcessing)
			item.Post("/status", s.updateStatus)
			item.Post("/reset", s.resetContent)
			item.Post("/process", s.processOne)
		})

		api.Post("/embeddings", s.createEmbedding)
		api.Post("/search", s.search)
		api.Post("/process", s.processPending)

		api.Get("/queue", s.queue)
		api.Get("/dashboard", s.dashboard)
		api.Get("/usage", s.usage)
		api.Post("/usage/snapshot", s.snapshot)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Kind: "not_found"})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	logger.Info("Shutting down HTTP API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

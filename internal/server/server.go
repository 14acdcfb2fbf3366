// Package server provides the HTTP API for launching and inspecting benchmark runs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/synthbench/internal/database"
	"github.com/aristath/synthbench/internal/events"
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/modules/ledger"
	"github.com/aristath/synthbench/internal/modules/target"
	"github.com/aristath/synthbench/internal/scheduler"
)

// DefaultMaxRuns bounds how many runs the API executes at once
const DefaultMaxRuns = 1

// RunStore reads recorded runs
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]ledger.Run, error)
	GetRun(ctx context.Context, id string) (*ledger.Run, error)
}

// RunLauncher executes a benchmark run to completion
type RunLauncher interface {
	Run(ctx context.Context, req benchmark.Request) (*benchmark.RunResult, error)
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	DB       *database.DB // optional, reported by /api/health
	Store    RunStore
	Runner   RunLauncher
	Builder  target.Builder
	Bus      *events.Bus
	Gatherer prometheus.Gatherer // nil = prometheus.DefaultGatherer
	// Jobs can be triggered by name with POST /api/jobs/{name}
	Jobs []scheduler.Job
	// ApproximationDepth is used for API runs that do not set one
	ApproximationDepth int
	MaxRuns            int
	// LogFile is served by GET /api/logs; empty disables it
	LogFile string
	Port    int
	DevMode bool
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	cfg      Config
	runSlots *semaphore.Weighted

	// runs started by the API stop when the server shuts down
	baseCtx    context.Context
	cancelRuns context.CancelFunc
	inflight   sync.WaitGroup
	active     atomic.Int32
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = DefaultMaxRuns
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg,
		runSlots:   semaphore.NewWeighted(int64(cfg.MaxRuns)),
		baseCtx:    ctx,
		cancelRuns: cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived streams must not be timed out or compressed
		r.Get("/runs/{id}/stream", NewStreamHandler(s.cfg.Bus, s.cfg.Store, s.log).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			r.Get("/health", s.handleHealth)
			r.Get("/system", s.handleSystem)

			r.Get("/runs", s.handleListRuns)
			r.Post("/runs", s.handleCreateRun)
			r.Get("/runs/{id}", s.handleGetRun)

			r.Post("/jobs/{name}", s.handleTriggerJob)

			logs := NewLogHandlers(s.cfg.LogFile, s.log)
			r.Get("/logs", logs.HandleGetLogs)
			r.Get("/logs/errors", logs.HandleGetErrors)
		})
	})
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, cancelling runs still in flight
// and waiting for them to record their results.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	err := s.server.Shutdown(ctx)

	s.cancelRuns()
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("Runs still in flight at shutdown deadline")
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

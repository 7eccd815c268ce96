// Package server provides the HTTP surface over the underwriting core.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/database"
	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/underwriting"
	"github.com/aristath/underwriter/pkg/logger"
)

// Config holds server dependencies
type Config struct {
	Log         zerolog.Logger
	RegistryDB  *database.DB
	AuditDB     *database.DB
	Config      *config.Config
	Registry    *RegistryHolder
	Store       metrics.Store
	Audit       *audit.Repository
	Archiver    *audit.Archiver // nil disables archiving
	Underwriter *underwriting.Service
	Overrides   map[policy.Product]policy.ConfigOverride
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	registryDB  *database.DB
	auditDB     *database.DB
	cfg         *config.Config
	registry    *RegistryHolder
	store       metrics.Store
	audit       *audit.Repository
	archiver    *audit.Archiver
	underwriter *underwriting.Service
	overrides   map[policy.Product]policy.ConfigOverride
	startedAt   time.Time
	now         func() time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         logger.Component(cfg.Log, "server"),
		registryDB:  cfg.RegistryDB,
		auditDB:     cfg.AuditDB,
		cfg:         cfg.Config,
		registry:    cfg.Registry,
		store:       cfg.Store,
		audit:       cfg.Audit,
		archiver:    cfg.Archiver,
		underwriter: cfg.Underwriter,
		overrides:   cfg.Overrides,
		startedAt:   time.Now(),
		now:         time.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistryHolder(metrics.SeedRegistry())
	}
	if s.underwriter == nil {
		s.underwriter = underwriting.NewService(cfg.Log)
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/underwrite", s.handleUnderwrite)
		r.Post("/debt/service", s.handleDebtService)
		r.Post("/policy/evaluate", s.handlePolicyEvaluate)
		r.Post("/snapshots/compare", s.handleCompareSnapshots)

		r.Route("/registry", func(r chi.Router) {
			r.Get("/active", s.handleActiveRegistry)
			r.Post("/versions", s.handleCreateRegistryVersion)
			r.Post("/versions/{id}/publish", s.handlePublishRegistryVersion)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/deals/{dealID}", s.handleListAuditRecords)
			r.Get("/{id}", s.handleGetAuditRecord)
			r.Post("/{id}/replay", s.handleReplayAuditRecord)
		})

		r.Get("/system/status", s.handleSystemStatus)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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

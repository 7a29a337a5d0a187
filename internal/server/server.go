// Package server provides the HTTP server and routing for qboost.
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

	"github.com/aristath/qboost/internal/config"
	"github.com/aristath/qboost/internal/database"
	"github.com/aristath/qboost/internal/events"
	quantumhandlers "github.com/aristath/qboost/internal/modules/quantum/handlers"
	"github.com/aristath/qboost/internal/modules/results"
	resultshandlers "github.com/aristath/qboost/internal/modules/results/handlers"
	"github.com/aristath/qboost/internal/reliability"
	"github.com/aristath/qboost/internal/services"
)

// Config holds server configuration.
type Config struct {
	Log            zerolog.Logger
	Config         *config.Config
	RunsDB         *database.DB
	Store          *results.Store
	RunService     *services.RunService
	ArchiveService *reliability.ArchiveService // nil when archiving is disabled
	EventBus       *events.Bus
	EventManager   *events.Manager
	Port           int
	DevMode        bool
}

// Server represents the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	runsDB         *database.DB
	store          *results.Store
	runService     *services.RunService
	archiveService *reliability.ArchiveService
	eventBus       *events.Bus
	eventManager   *events.Manager
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
	port           int
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.RunsDB,
		cfg.Store,
		cfg.RunService,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		runsDB:         cfg.RunsDB,
		store:          cfg.Store,
		runService:     cfg.RunService,
		archiveService: cfg.ArchiveService,
		eventBus:       cfg.EventBus,
		eventManager:   cfg.EventManager,
		systemHandlers: systemHandlers,
		port:           cfg.Port,
	}

	s.statusMonitor = NewStatusMonitor(cfg.EventManager, cfg.RunService, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the SSE and WebSocket streams outlive any
		// fixed deadline
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Unified events stream (SSE) - must be before other routes for proper handling
		eventsStreamHandler := NewEventsStreamHandler(s.eventBus, s.cfg.DataDir, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		logHandlers := NewLogHandlers(s.log)

		// System monitoring
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)

			// Log access
			r.Get("/logs/list", logHandlers.HandleListLogs)
			r.Get("/logs", logHandlers.HandleGetLogs)
			r.Get("/logs/errors", logHandlers.HandleGetErrors)
		})

		// Run control and browsing share the /runs prefix: control routes
		// use static segments so they never shadow the {id} lookups
		runHandlers := NewRunHandlers(s.runService, s.cfg.Run, s.eventBus, s.log)
		resultsHandler := resultshandlers.NewHandler(s.store, s.log)
		r.Route("/runs", func(r chi.Router) {
			runHandlers.RegisterRoutes(r)
			resultsHandler.RegisterRoutes(r)
		})

		// Hamiltonian inspection endpoints
		quantumHandler := quantumhandlers.NewHandler(s.log)
		quantumHandler.RegisterRoutes(r)

		// Archive endpoints respond 503 until an object store is configured
		archiveHandlers := NewArchiveHandlers(s.archiveService, s.store, s.log)
		archiveHandlers.RegisterRoutes(r)
	})
}

// Start starts the HTTP server and background monitors
func (s *Server) Start() error {
	// Status monitor notices run state transitions (check every 15 seconds)
	if s.statusMonitor != nil {
		s.statusMonitor.Start(15 * time.Second)
		s.log.Info().Msg("Status monitor started")
	}

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	if s.statusMonitor != nil {
		s.statusMonitor.Stop()
	}
	return s.server.Shutdown(ctx)
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

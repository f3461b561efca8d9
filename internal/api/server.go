// Package api provides the HTTP API server for the console.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/flowdeck/console/internal/api/handlers"
	"github.com/flowdeck/console/internal/api/health"
	"github.com/flowdeck/console/internal/api/middleware"
	"github.com/flowdeck/console/internal/auth"
	"github.com/flowdeck/console/internal/engines"
	"github.com/flowdeck/console/internal/engines/cdc"
	"github.com/flowdeck/console/internal/engines/metadata"
	"github.com/flowdeck/console/internal/engines/scheduler"
	"github.com/flowdeck/console/internal/engines/transform"
	"github.com/flowdeck/console/internal/ingest"
	"github.com/flowdeck/console/internal/logs"
	"github.com/flowdeck/console/internal/queue"
	"github.com/flowdeck/console/internal/secrets"
	"github.com/flowdeck/console/internal/store"
	"github.com/flowdeck/console/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	queue         queue.Queue
	auth          *auth.Service
	vault         *secrets.Vault
	broker        *logs.Broker
	tail          *logs.Tail
	ingestor      *ingest.Ingestor
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, q queue.Queue, authSvc *auth.Service, broker *logs.Broker, tail *logs.Tail, ingestor *ingest.Ingestor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:    st,
		queue:    q,
		auth:     authSvc,
		broker:   broker,
		tail:     tail,
		ingestor: ingestor,
		config:   cfg,
		logger:   logger,
	}

	s.healthChecker = health.NewChecker(Version)
	if pinger, ok := st.(health.Pinger); ok {
		s.healthChecker.Register("database", pinger)
	}
	if pinger, ok := q.(health.Pinger); ok {
		s.healthChecker.Register("queue", pinger)
	}

	// Credential vault needs at least a public key to accept new sources.
	if cfg.Secrets.AgePublicKey != "" || cfg.Secrets.AgePrivateKey != "" {
		vault, err := secrets.NewVault(&secrets.Config{
			AgePublicKey:  cfg.Secrets.AgePublicKey,
			AgePrivateKey: cfg.Secrets.AgePrivateKey,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize credential vault", "error", err)
		} else {
			s.vault = vault
			logger.Info("credential vault initialized", "can_encrypt", vault.CanEncrypt(), "can_decrypt", vault.CanDecrypt())
		}
	} else {
		logger.Warn("age keys not configured, data source registration will be rejected")
	}

	s.setupRouter()
	return s
}

// engineClients builds the four engine clients from configuration.
func (s *Server) engineClients() (*transform.Client, *cdc.Client, *scheduler.Client, *metadata.Client) {
	base := engines.Config{
		Token:   s.config.Engines.Token,
		Timeout: s.config.Engines.Timeout,
	}

	tc := base
	tc.BaseURL = s.config.Engines.TransformURL
	cc := base
	cc.BaseURL = s.config.Engines.CDCURL
	sc := base
	sc.BaseURL = s.config.Engines.SchedulerURL
	mc := base
	mc.BaseURL = s.config.Engines.MetadataURL

	return transform.NewClient(tc), cdc.NewClient(cc), scheduler.NewClient(sc), metadata.NewClient(mc)
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	// Auth routes (no auth required)
	authHandler := handlers.NewAuthHandler(s.store, s.auth, s.logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	transformClient, cdcClient, schedulerClient, metadataClient := s.engineClients()

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Auth middleware for all v1 routes
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.config.APIKeyHeader, s.logger)
		r.Use(authMiddleware.Authenticate)

		r.Get("/auth/validate", authHandler.Validate)

		// Workflow routes
		workflowHandler := handlers.NewWorkflowHandler(s.store, schedulerClient, s.logger)
		r.Route("/workflows", func(r chi.Router) {
			r.Post("/", workflowHandler.Create)
			r.Get("/", workflowHandler.List)
			r.Route("/{workflowID}", func(r chi.Router) {
				r.Get("/", workflowHandler.Get)
				r.Patch("/", workflowHandler.Update)
				r.Delete("/", workflowHandler.Delete)
				r.Post("/runs", workflowHandler.CreateRun)
				r.Get("/runs", workflowHandler.ListRuns)
			})
		})

		// Run routes
		runHandler := handlers.NewRunHandler(s.store, schedulerClient, s.logger)
		logHandler := handlers.NewLogHandler(s.store, s.ingestor, s.logger)
		logStreamHandler := handlers.NewLogStreamHandler(s.broker, s.tail, s.logger)
		logWSHandler := handlers.NewLogWSHandler(s.broker, s.tail, s.logger)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", runHandler.Get)
			r.Post("/cancel", runHandler.Cancel)

			r.Get("/logs", logHandler.Get)
			r.Post("/logs", logHandler.Ingest)
			r.Get("/logs/stream", logStreamHandler.Stream)
			r.Get("/logs/ws", logWSHandler.Stream)
		})

		// Sync task routes
		taskHandler := handlers.NewTaskHandler(s.store, s.queue, s.logger)
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.Create)
			r.Get("/", taskHandler.List)
			r.Get("/{taskID}", taskHandler.Get)
		})

		// Data source routes
		settingsHandler := handlers.NewSettingsHandler(s.store, s.logger)
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.List)
			r.Put("/{key}", settingsHandler.Put)
		})

		sourceHandler := handlers.NewSourceHandler(s.store, s.vault, s.logger)
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", sourceHandler.Create)
			r.Get("/", sourceHandler.List)
			r.Delete("/{sourceID}", sourceHandler.Delete)
		})

		// Engine pass-through routes
		engineHandler := handlers.NewEngineHandler(transformClient, cdcClient, schedulerClient, metadataClient, s.logger)
		r.Route("/engines", func(r chi.Router) {
			r.Route("/transform", func(r chi.Router) {
				r.Post("/jobs", engineHandler.SubmitTransformJob)
				r.Get("/jobs/{jobID}", engineHandler.TransformJobStatus)
				r.Post("/jobs/{jobID}/steps/{stepID}/preview", engineHandler.PreviewTransformStep)
			})
			r.Route("/cdc", func(r chi.Router) {
				r.Post("/syncs", engineHandler.CreateSync)
				r.Get("/syncs", engineHandler.ListSyncs)
				r.Get("/syncs/{syncID}", engineHandler.SyncStatus)
			})
			r.Route("/scheduler", func(r chi.Router) {
				r.Post("/schedules", engineHandler.CreateSchedule)
				r.Delete("/schedules/{scheduleID}", engineHandler.DeleteSchedule)
				r.Get("/schedules/{workflowID}/next", engineHandler.NextRuns)
			})
			r.Route("/metadata", func(r chi.Router) {
				r.Get("/tables/{tableName}", engineHandler.GetTable)
				r.Get("/tables/{tableName}/lineage", engineHandler.TableLineage)
				r.Get("/search", engineHandler.SearchTables)
			})
		})
	})

	s.router = r
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}

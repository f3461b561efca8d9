// Package main provides the entry point for the console API server.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/flowdeck/console/internal/api"
	"github.com/flowdeck/console/internal/auth"
	"github.com/flowdeck/console/internal/ingest"
	"github.com/flowdeck/console/internal/logs"
	pgqueue "github.com/flowdeck/console/internal/queue/postgres"
	"github.com/flowdeck/console/internal/retention"
	"github.com/flowdeck/console/internal/shutdown"
	pgstore "github.com/flowdeck/console/internal/store/postgres"
	"github.com/flowdeck/console/pkg/config"
	"github.com/flowdeck/console/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(slog.LevelInfo, true)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database connection for queue
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to open database connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize database store
	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	store, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize sync task queue
	queue := pgqueue.NewPostgresQueue(db, log.Logger)

	// Initialize auth service
	authCfg := &auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}
	authService := auth.NewService(authCfg, nil, log.Logger)

	// Initialize the log fan-out and ingestion pipeline
	broker := logs.NewBroker(log.Logger)
	tail := logs.NewTail(cfg.Ingest.TailLines)
	ingestor := ingest.NewIngestor(store.Logs(), broker, tail, ingest.Config{
		BufferSize: cfg.Ingest.BufferSize,
		Workers:    cfg.Ingest.Workers,
	}, log.Logger)
	ingestor.Start()

	// Initialize the log retention sweeper
	sweeper, err := retention.NewSweeper(store.Runs(), store.Logs(), tail, store.Settings(), retention.Config{
		MaxAge:   cfg.Retention.MaxAge,
		Schedule: cfg.Retention.Schedule,
	}, log.Logger)
	if err != nil {
		log.Error("failed to create retention sweeper", "error", err)
		os.Exit(1)
	}
	if err := sweeper.Start(); err != nil {
		log.Error("failed to start retention sweeper", "error", err)
		os.Exit(1)
	}

	// Create the API server
	server := api.NewServer(cfg, store, queue, authService, broker, tail, ingestor, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Coordinated shutdown, LIFO: server first, then ingestor, then sweeper.
	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewFuncComponent("retention-sweeper", sweeper.Stop))
	coordinator.Register(shutdown.NewFuncComponent("log-ingestor", ingestor.Shutdown))
	coordinator.Register(shutdown.NewFuncComponent("api-server", server.Shutdown))
	go coordinator.WaitForSignal()

	// Start the server; it returns once shutdown closes the listener.
	log.Info("starting API server",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
	)

	if err := server.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	coordinator.Wait()
	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}

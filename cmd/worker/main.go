// Package main provides the entry point for the sync worker.
package main

import (
	"context"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/flowdeck/console/internal/engines"
	"github.com/flowdeck/console/internal/engines/cdc"
	postgresqueue "github.com/flowdeck/console/internal/queue/postgres"
	"github.com/flowdeck/console/internal/secrets"
	"github.com/flowdeck/console/internal/shutdown"
	"github.com/flowdeck/console/internal/store/postgres"
	"github.com/flowdeck/console/internal/worker"
	"github.com/flowdeck/console/pkg/config"
	"github.com/flowdeck/console/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.Default()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database store
	storeCfg := postgres.DefaultConfig(cfg.DatabaseDSN)
	store, err := postgres.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize queue
	queue := postgresqueue.NewPostgresQueue(store.DB(), log.Logger)

	// The worker holds the private key so it can hand decrypted credentials
	// to the CDC engine when a sync needs them.
	var vault *secrets.Vault
	if cfg.Secrets.AgePrivateKey != "" {
		vault, err = secrets.NewVault(&secrets.Config{
			AgePublicKey:  cfg.Secrets.AgePublicKey,
			AgePrivateKey: cfg.Secrets.AgePrivateKey,
		}, log.Logger)
		if err != nil {
			log.Error("failed to initialize credential vault", "error", err)
			os.Exit(1)
		}
		log.Info("credential vault initialized", "can_decrypt", vault.CanDecrypt())
	} else {
		log.Warn("age private key not configured, syncs will run without source credentials")
	}

	// CDC engine client
	cdcClient := cdc.NewClient(engines.Config{
		BaseURL: cfg.Engines.CDCURL,
		Token:   cfg.Engines.Token,
		Timeout: cfg.Engines.Timeout,
	})

	// Configure the worker
	workerCfg := &worker.Config{
		Concurrency:  cfg.Worker.MaxConcurrency,
		PollInterval: cfg.Worker.PollInterval,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		TaskTimeout:  cfg.Worker.TaskTimeout,
	}

	w, err := worker.NewWorker(workerCfg, store, queue, cdcClient, vault, log.Logger)
	if err != nil {
		log.Error("failed to create worker", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting sync worker",
		"concurrency", cfg.Worker.MaxConcurrency,
		"poll_interval", cfg.Worker.PollInterval,
	)

	if err := w.Start(ctx); err != nil {
		log.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", store))
	coordinator.Register(shutdown.NewWorkerComponent("sync-worker", w))
	coordinator.WaitForSignal()

	log.Info("sync worker shutdown complete")
	os.Exit(coordinator.ExitCode())
}

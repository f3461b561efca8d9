// Package worker processes queued sync tasks against the CDC engine.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowdeck/console/internal/engines"
	"github.com/flowdeck/console/internal/engines/cdc"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/queue"
	"github.com/flowdeck/console/internal/secrets"
	"github.com/flowdeck/console/internal/store"
)

// Worker drains the sync queue and drives each task through the CDC engine.
type Worker struct {
	store  store.Store
	queue  queue.Queue
	cdc    *cdc.Client
	vault  *secrets.Vault
	logger *slog.Logger

	concurrency  int
	pollInterval time.Duration
	maxAttempts  int
	taskTimeout  time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// Config holds configuration for the sync worker.
type Config struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	// TaskTimeout bounds a single sync attempt, including the engine
	// poll loop. A sync the engine never finishes fails the attempt
	// instead of pinning a worker slot.
	TaskTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:  4,
		PollInterval: 2 * time.Second,
		MaxAttempts:  3,
		TaskTimeout:  30 * time.Minute,
	}
}

// NewWorker creates a new sync worker. The vault may be nil, in which case
// syncs are submitted without source credentials.
func NewWorker(cfg *Config, s store.Store, q queue.Queue, cdcClient *cdc.Client, vault *secrets.Vault, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cdcClient == nil {
		return nil, fmt.Errorf("cdc client is required")
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	taskTimeout := cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Minute
	}

	return &Worker{
		store:        s,
		queue:        q,
		cdc:          cdcClient,
		vault:        vault,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		taskTimeout:  taskTimeout,
		stopCh:       make(chan struct{}),
	}, nil
}

// Start begins processing sync tasks from the queue.
// It spawns multiple goroutines based on the configured concurrency.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("starting sync worker", "concurrency", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	return nil
}

// Stop gracefully stops the worker and waits for in-flight tasks to finish.
func (w *Worker) Stop() {
	w.logger.Info("stopping sync worker")
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("sync worker stopped")
}

// workerLoop is the main loop for a single worker goroutine.
func (w *Worker) workerLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Debug("worker stop signal received")
			return
		default:
			task, err := w.queue.Dequeue(ctx)
			if err != nil {
				if errors.Is(err, queue.ErrNoJobs) {
					w.sleep(w.pollInterval)
					continue
				}
				logger.Error("failed to dequeue task", "error", err)
				w.sleep(5 * time.Second)
				continue
			}

			if err := w.processTask(ctx, task); err != nil {
				logger.Error("failed to process task",
					"task_id", task.ID,
					"attempts", task.Attempts,
					"error", err,
				)
				w.retryOrFail(ctx, task, err)
				continue
			}

			if err := w.queue.Ack(ctx, task.ID); err != nil {
				logger.Error("failed to ack task", "task_id", task.ID, "error", err)
			}
		}
	}
}

// sleep waits for the given duration but returns early on stop.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// retryOrFail re-queues a failed task or marks it permanently failed once
// the attempt budget is spent. Upstream rejections from the CDC engine are
// not retried; the engine already refused the sync.
func (w *Worker) retryOrFail(ctx context.Context, task *models.SyncTask, taskErr error) {
	task.Attempts++
	task.LastError = taskErr.Error()

	exhausted := task.Attempts >= w.maxAttempts
	if engines.IsUpstream(taskErr) {
		exhausted = true
	}

	if exhausted {
		task.Status = models.TaskStatusFailed
		if err := w.store.Tasks().Update(ctx, task); err != nil {
			w.logger.Error("failed to mark task failed", "task_id", task.ID, "error", err)
		}
		if err := w.queue.Ack(ctx, task.ID); err != nil {
			w.logger.Error("failed to ack failed task", "task_id", task.ID, "error", err)
		}
		return
	}

	task.Status = models.TaskStatusQueued
	if err := w.store.Tasks().Update(ctx, task); err != nil {
		w.logger.Error("failed to update task for retry", "task_id", task.ID, "error", err)
	}
	if err := w.queue.Nack(ctx, task.ID); err != nil {
		w.logger.Error("failed to nack task", "task_id", task.ID, "error", err)
	}
}

// processTask runs a single sync task to completion within the task timeout.
func (w *Worker) processTask(ctx context.Context, task *models.SyncTask) error {
	ctx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	w.logger.Info("processing sync task",
		"task_id", task.ID,
		"source_id", task.SourceID,
		"target_id", task.TargetID,
		"mode", task.Mode,
	)

	task.Status = models.TaskStatusRunning
	if err := w.store.Tasks().Update(ctx, task); err != nil {
		return fmt.Errorf("updating task status to running: %w", err)
	}

	req := &cdc.SyncRequest{
		SourceID: task.SourceID,
		TargetID: task.TargetID,
		Mode:     string(task.Mode),
	}
	if creds, err := w.sourceCredentials(ctx, task.SourceID); err != nil {
		w.logger.Warn("continuing without source credentials",
			"task_id", task.ID,
			"source_id", task.SourceID,
			"error", err,
		)
	} else {
		req.SourceCredentials = creds
	}

	sync, err := w.cdc.CreateSync(ctx, req)
	if err != nil {
		return fmt.Errorf("creating sync: %w", err)
	}

	final, err := w.waitForSync(ctx, sync.ID)
	if err != nil {
		return fmt.Errorf("waiting for sync %s: %w", sync.ID, err)
	}

	if final.Status == "failed" {
		if final.Error != "" {
			return fmt.Errorf("sync failed: %s", final.Error)
		}
		return fmt.Errorf("sync failed")
	}

	w.logger.Info("sync task succeeded",
		"task_id", task.ID,
		"sync_id", sync.ID,
		"rows_synced", final.RowsSynced,
	)

	task.Status = models.TaskStatusSucceeded
	task.LastError = ""
	if err := w.store.Tasks().Update(ctx, task); err != nil {
		w.logger.Error("failed to mark task succeeded", "task_id", task.ID, "error", err)
	}

	return nil
}

// sourceCredentials decrypts the stored credential blob for a source.
// Returns nil without error when no vault is configured.
func (w *Worker) sourceCredentials(ctx context.Context, sourceID string) (json.RawMessage, error) {
	if w.vault == nil || !w.vault.CanDecrypt() {
		return nil, nil
	}

	source, err := w.store.Sources().Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("getting source: %w", err)
	}
	if len(source.Credentials) == 0 {
		return nil, nil
	}

	plaintext, err := w.vault.Decrypt(ctx, source.Credentials)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}
	return json.RawMessage(plaintext), nil
}

// waitForSync polls the CDC engine until the sync reaches a terminal state.
func (w *Worker) waitForSync(ctx context.Context, syncID string) (*cdc.Sync, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		sync, err := w.cdc.SyncStatus(ctx, syncID)
		if err != nil {
			return nil, err
		}

		switch sync.Status {
		case "succeeded", "failed":
			return sync, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.stopCh:
			return nil, fmt.Errorf("worker stopping")
		case <-ticker.C:
		}
	}
}

// ProcessSingleTask processes one task without the worker loop.
// This is useful for testing or one-off syncs.
func (w *Worker) ProcessSingleTask(ctx context.Context, task *models.SyncTask) error {
	return w.processTask(ctx, task)
}

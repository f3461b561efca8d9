// Package queue provides sync job queue interfaces and implementations.
package queue

import (
	"context"
	"errors"

	"github.com/flowdeck/console/internal/models"
)

// Common errors returned by queue operations.
var (
	// ErrNoJobs is returned when no jobs are available in the queue.
	ErrNoJobs = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")
)

// Queue defines the interface for sync job queue operations.
type Queue interface {
	// Enqueue adds a new sync task to the queue.
	// The task is serialized to JSON for storage.
	Enqueue(ctx context.Context, task *models.SyncTask) error

	// Dequeue retrieves and locks the next available sync task.
	// Returns ErrNoJobs if no tasks are available.
	Dequeue(ctx context.Context) (*models.SyncTask, error)

	// Ack acknowledges successful processing of a task, removing it from the queue.
	Ack(ctx context.Context, taskID string) error

	// Nack indicates that task processing failed, making the task available for retry.
	Nack(ctx context.Context, taskID string) error
}

// Package postgres provides a PostgreSQL-backed implementation of the sync queue.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/queue"
)

// PostgresQueue implements queue.Queue using PostgreSQL.
type PostgresQueue struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresQueue creates a new PostgreSQL-backed queue.
func NewPostgresQueue(db *sql.DB, logger *slog.Logger) *PostgresQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQueue{
		db:     db,
		logger: logger,
	}
}

// Ping verifies queue database connectivity.
func (q *PostgresQueue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Enqueue adds a new sync task to the queue.
// The task is serialized to JSON and stored in the sync_queue table.
func (q *PostgresQueue) Enqueue(ctx context.Context, task *models.SyncTask) error {
	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task to JSON: %w", err)
	}

	query := `
		INSERT INTO sync_queue (id, task_data, status, created_at)
		VALUES ($1, $2, 'pending', $3)`

	now := time.Now().UTC()
	_, err = q.db.ExecContext(ctx, query, task.ID, taskData, now)
	if err != nil {
		return fmt.Errorf("inserting task into queue: %w", err)
	}

	q.logger.Debug("enqueued sync task", "task_id", task.ID)
	return nil
}

// Dequeue retrieves and locks the next available sync task.
// Uses SELECT FOR UPDATE SKIP LOCKED for concurrent worker safety.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*models.SyncTask, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT id, task_data
		FROM sync_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var taskID string
	var taskData []byte
	err = tx.QueryRowContext(ctx, selectQuery).Scan(&taskID, &taskData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoJobs
		}
		return nil, fmt.Errorf("selecting task from queue: %w", err)
	}

	updateQuery := `
		UPDATE sync_queue
		SET status = 'processing', started_at = $2
		WHERE id = $1`

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, updateQuery, taskID, now)
	if err != nil {
		return nil, fmt.Errorf("updating task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	var task models.SyncTask
	if err := json.Unmarshal(taskData, &task); err != nil {
		return nil, fmt.Errorf("unmarshaling task from JSON: %w", err)
	}

	q.logger.Debug("dequeued sync task", "task_id", task.ID)
	return &task, nil
}

// Ack acknowledges successful processing of a task, removing it from the queue.
func (q *PostgresQueue) Ack(ctx context.Context, taskID string) error {
	query := `
		DELETE FROM sync_queue
		WHERE id = $1 AND status = 'processing'`

	result, err := q.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return fmt.Errorf("deleting task from queue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return queue.ErrJobNotFound
	}

	q.logger.Debug("acknowledged sync task", "task_id", taskID)
	return nil
}

// Nack indicates that task processing failed, making the task available for retry.
func (q *PostgresQueue) Nack(ctx context.Context, taskID string) error {
	query := `
		UPDATE sync_queue
		SET status = 'pending', started_at = NULL, retry_count = retry_count + 1
		WHERE id = $1 AND status = 'processing'`

	result, err := q.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return queue.ErrJobNotFound
	}

	q.logger.Debug("nacked sync task", "task_id", taskID)
	return nil
}

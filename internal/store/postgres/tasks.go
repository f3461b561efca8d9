package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

// TaskStore implements store.TaskStore using PostgreSQL.
type TaskStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *TaskStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const taskColumns = `id, source_id, target_id, mode, status, attempts, COALESCE(last_error, ''),
	created_at, updated_at`

// Create creates a new sync task.
func (s *TaskStore) Create(ctx context.Context, task *models.SyncTask) error {
	query := `
		INSERT INTO sync_tasks (id, source_id, target_id, mode, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		task.ID,
		task.SourceID,
		task.TargetID,
		task.Mode,
		task.Status,
		task.Attempts,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("inserting sync task: %w", err)
	}

	return nil
}

// Get retrieves a sync task by ID.
func (s *TaskStore) Get(ctx context.Context, id string) (*models.SyncTask, error) {
	query := `SELECT ` + taskColumns + ` FROM sync_tasks WHERE id = $1`

	row := s.conn().QueryRowContext(ctx, query, id)
	task, err := s.scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying sync task: %w", err)
	}

	return task, nil
}

// List retrieves all sync tasks, newest first.
func (s *TaskStore) List(ctx context.Context, limit int) ([]*models.SyncTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM sync_tasks
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.conn().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync tasks: %w", err)
	}
	defer rows.Close()

	return s.scanTasks(rows)
}

// Update updates an existing task.
func (s *TaskStore) Update(ctx context.Context, task *models.SyncTask) error {
	query := `
		UPDATE sync_tasks
		SET status = $2, attempts = $3, last_error = $4, updated_at = $5
		WHERE id = $1`

	task.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx, query,
		task.ID,
		task.Status,
		task.Attempts,
		task.LastError,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating sync task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// scanTask scans a single task row.
func (s *TaskStore) scanTask(row rowScanner) (*models.SyncTask, error) {
	task := &models.SyncTask{}

	err := row.Scan(
		&task.ID,
		&task.SourceID,
		&task.TargetID,
		&task.Mode,
		&task.Status,
		&task.Attempts,
		&task.LastError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return task, nil
}

// scanTasks scans multiple task rows.
func (s *TaskStore) scanTasks(rows *sql.Rows) ([]*models.SyncTask, error) {
	var tasks []*models.SyncTask

	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync task rows: %w", err)
	}

	return tasks, nil
}

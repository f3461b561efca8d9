package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

// RunStore implements store.RunStore using PostgreSQL.
type RunStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *RunStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const runColumns = `id, workflow_id, status, trigger_type, node_ids, COALESCE(error, ''),
	started_at, finished_at, created_at, updated_at`

// Create creates a new run.
func (s *RunStore) Create(ctx context.Context, run *models.WorkflowRun) error {
	query := `
		INSERT INTO workflow_runs (id, workflow_id, status, trigger_type, node_ids, error,
			started_at, finished_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = now
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}

	err := s.conn().QueryRowContext(ctx, query,
		run.ID,
		run.WorkflowID,
		run.Status,
		run.Trigger,
		pq.Array(run.NodeIDs),
		run.Error,
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
		run.UpdatedAt,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)

	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE id = $1`

	row := s.conn().QueryRowContext(ctx, query, id)
	run, err := s.scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	return run, nil
}

// ListByWorkflow retrieves runs for a workflow, newest first.
func (s *RunStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM workflow_runs
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.conn().QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	return s.scanRuns(rows)
}

// ListFinishedBefore retrieves terminal runs that finished before the given time.
func (s *RunStore) ListFinishedBefore(ctx context.Context, before time.Time) ([]*models.WorkflowRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM workflow_runs
		WHERE status IN ('succeeded', 'failed', 'canceled') AND finished_at < $1
		ORDER BY finished_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("querying finished runs: %w", err)
	}
	defer rows.Close()

	return s.scanRuns(rows)
}

// Update updates an existing run.
func (s *RunStore) Update(ctx context.Context, run *models.WorkflowRun) error {
	query := `
		UPDATE workflow_runs
		SET status = $2, node_ids = $3, error = $4, finished_at = $5, updated_at = $6
		WHERE id = $1`

	run.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx, query,
		run.ID,
		run.Status,
		pq.Array(run.NodeIDs),
		run.Error,
		run.FinishedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
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

// scanRun scans a single run row.
func (s *RunStore) scanRun(row rowScanner) (*models.WorkflowRun, error) {
	run := &models.WorkflowRun{}

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.Status,
		&run.Trigger,
		pq.Array(&run.NodeIDs),
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// scanRuns scans multiple run rows.
func (s *RunStore) scanRuns(rows *sql.Rows) ([]*models.WorkflowRun, error) {
	var runs []*models.WorkflowRun

	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}

	return runs, nil
}

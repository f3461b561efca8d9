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
	"github.com/flowdeck/console/internal/store"
)

// WorkflowStore implements store.WorkflowStore using PostgreSQL.
type WorkflowStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *WorkflowStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new workflow.
func (s *WorkflowStore) Create(ctx context.Context, workflow *models.Workflow) error {
	nodesJSON, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("marshaling nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(workflow.Edges)
	if err != nil {
		return fmt.Errorf("marshaling edges: %w", err)
	}

	query := `
		INSERT INTO workflows (id, owner_id, name, description, nodes, edges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}
	if workflow.UpdatedAt.IsZero() {
		workflow.UpdatedAt = now
	}

	err = s.conn().QueryRowContext(ctx, query,
		workflow.ID,
		workflow.OwnerID,
		workflow.Name,
		workflow.Description,
		nodesJSON,
		edgesJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	).Scan(&workflow.ID, &workflow.CreatedAt, &workflow.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting workflow: %w", err)
	}

	return nil
}

// Get retrieves a workflow by ID.
func (s *WorkflowStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, owner_id, name, COALESCE(description, ''), nodes, edges, created_at, updated_at
		FROM workflows
		WHERE id = $1`

	row := s.conn().QueryRowContext(ctx, query, id)
	workflow, err := s.scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying workflow: %w", err)
	}

	return workflow, nil
}

// List retrieves all workflows for a given owner.
func (s *WorkflowStore) List(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	query := `
		SELECT id, owner_id, name, COALESCE(description, ''), nodes, edges, created_at, updated_at
		FROM workflows
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		workflow, err := s.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow row: %w", err)
		}
		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow rows: %w", err)
	}

	return workflows, nil
}

// Update updates an existing workflow.
func (s *WorkflowStore) Update(ctx context.Context, workflow *models.Workflow) error {
	nodesJSON, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("marshaling nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(workflow.Edges)
	if err != nil {
		return fmt.Errorf("marshaling edges: %w", err)
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, nodes = $4, edges = $5, updated_at = $6
		WHERE id = $1`

	workflow.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		nodesJSON,
		edgesJSON,
		workflow.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating workflow: %w", err)
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

// Delete removes a workflow.
func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM workflows WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
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

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanWorkflow scans a single workflow row.
func (s *WorkflowStore) scanWorkflow(row rowScanner) (*models.Workflow, error) {
	workflow := &models.Workflow{}
	var nodesJSON, edgesJSON []byte

	err := row.Scan(
		&workflow.ID,
		&workflow.OwnerID,
		&workflow.Name,
		&workflow.Description,
		&nodesJSON,
		&edgesJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodesJSON, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshaling nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("unmarshaling edges: %w", err)
	}

	return workflow, nil
}

// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/flowdeck/console/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Store is the main interface for database operations.
type Store interface {
	// Workflows returns the WorkflowStore for workflow operations.
	Workflows() WorkflowStore
	// Runs returns the RunStore for workflow run operations.
	Runs() RunStore
	// Logs returns the LogStore for log operations.
	Logs() LogStore
	// Tasks returns the TaskStore for sync task operations.
	Tasks() TaskStore
	// Sources returns the SourceStore for data source operations.
	Sources() SourceStore
	// Users returns the UserStore for user operations.
	Users() UserStore
	// Settings returns the SettingsStore for global configuration.
	Settings() SettingsStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the database connection.
	Close() error
}

// WorkflowStore defines operations for workflow management.
type WorkflowStore interface {
	// Create creates a new workflow.
	Create(ctx context.Context, workflow *models.Workflow) error
	// Get retrieves a workflow by ID.
	Get(ctx context.Context, id string) (*models.Workflow, error)
	// List retrieves all workflows for a given owner.
	List(ctx context.Context, ownerID string) ([]*models.Workflow, error)
	// Update updates an existing workflow.
	Update(ctx context.Context, workflow *models.Workflow) error
	// Delete removes a workflow.
	Delete(ctx context.Context, id string) error
}

// RunStore defines operations for workflow run management.
type RunStore interface {
	// Create creates a new run.
	Create(ctx context.Context, run *models.WorkflowRun) error
	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*models.WorkflowRun, error)
	// ListByWorkflow retrieves runs for a workflow, newest first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowRun, error)
	// ListFinishedBefore retrieves terminal runs that finished before the given time.
	ListFinishedBefore(ctx context.Context, before time.Time) ([]*models.WorkflowRun, error)
	// Update updates an existing run.
	Update(ctx context.Context, run *models.WorkflowRun) error
}

// LogStore defines operations for log management.
type LogStore interface {
	// CreateBatch creates a batch of log entries in one statement.
	CreateBatch(ctx context.Context, entries []*models.LogEntry) error
	// List retrieves log entries for a run in ascending timestamp order.
	List(ctx context.Context, runID string, limit int) ([]*models.LogEntry, error)
	// ListByNode retrieves log entries for a run filtered by node ID.
	ListByNode(ctx context.Context, runID, nodeID string, limit int) ([]*models.LogEntry, error)
	// DeleteByRun removes all log entries of a run.
	DeleteByRun(ctx context.Context, runID string) error
}

// TaskStore defines operations for sync task management.
type TaskStore interface {
	// Create creates a new sync task.
	Create(ctx context.Context, task *models.SyncTask) error
	// Get retrieves a sync task by ID.
	Get(ctx context.Context, id string) (*models.SyncTask, error)
	// List retrieves all sync tasks, newest first.
	List(ctx context.Context, limit int) ([]*models.SyncTask, error)
	// Update updates an existing task.
	Update(ctx context.Context, task *models.SyncTask) error
}

// SourceStore defines operations for data source management.
type SourceStore interface {
	// Create creates a new data source with an encrypted credential blob.
	Create(ctx context.Context, source *models.DataSource) error
	// Get retrieves a data source by ID.
	Get(ctx context.Context, id string) (*models.DataSource, error)
	// List retrieves all data sources.
	List(ctx context.Context) ([]*models.DataSource, error)
	// Delete removes a data source.
	Delete(ctx context.Context, id string) error
}

// User represents a console user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore defines operations for user management.
type UserStore interface {
	// Create creates a new user with hashed password.
	Create(ctx context.Context, email, password string) (*User, error)
	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*User, error)
	// Authenticate verifies credentials and returns the user.
	Authenticate(ctx context.Context, email, password string) (*User, error)
}

// SettingsStore defines operations for global system settings.
type SettingsStore interface {
	// Get retrieves a setting by key.
	Get(ctx context.Context, key string) (string, error)
	// Set sets a setting key-value pair.
	Set(ctx context.Context, key, value string) error
	// GetAll retrieves all global settings.
	GetAll(ctx context.Context) (map[string]string, error)
}

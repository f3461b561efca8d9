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

// SourceStore implements store.SourceStore using PostgreSQL.
type SourceStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *SourceStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new data source with an encrypted credential blob.
func (s *SourceStore) Create(ctx context.Context, source *models.DataSource) error {
	query := `
		INSERT INTO data_sources (id, name, kind, credentials, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}

	err := s.conn().QueryRowContext(ctx, query,
		source.ID,
		source.Name,
		source.Kind,
		source.Credentials,
		source.CreatedAt,
	).Scan(&source.ID, &source.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting data source: %w", err)
	}

	return nil
}

// Get retrieves a data source by ID.
func (s *SourceStore) Get(ctx context.Context, id string) (*models.DataSource, error) {
	query := `
		SELECT id, name, kind, credentials, created_at
		FROM data_sources
		WHERE id = $1`

	source := &models.DataSource{}
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&source.ID,
		&source.Name,
		&source.Kind,
		&source.Credentials,
		&source.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying data source: %w", err)
	}

	return source, nil
}

// List retrieves all data sources.
func (s *SourceStore) List(ctx context.Context) ([]*models.DataSource, error) {
	query := `
		SELECT id, name, kind, credentials, created_at
		FROM data_sources
		ORDER BY name ASC`

	rows, err := s.conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying data sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.DataSource
	for rows.Next() {
		source := &models.DataSource{}
		err := rows.Scan(
			&source.ID,
			&source.Name,
			&source.Kind,
			&source.Credentials,
			&source.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning data source row: %w", err)
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating data source rows: %w", err)
	}

	return sources, nil
}

// Delete removes a data source.
func (s *SourceStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM data_sources WHERE id = $1`

	result, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting data source: %w", err)
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

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck/console/internal/models"
)

// LogStore implements store.LogStore using PostgreSQL.
type LogStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// conn returns the queryable connection (transaction or database).
func (s *LogStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// CreateBatch creates a batch of log entries in one statement.
func (s *LogStore) CreateBatch(ctx context.Context, entries []*models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO logs (id, run_id, level, message, node_id, timestamp)
		VALUES `

	args := make([]any, 0, len(entries)*6)
	now := time.Now().UTC()
	for i, entry := range entries {
		if entry.Timestamp.IsZero() {
			entry.Timestamp = now
		}
		if i > 0 {
			query += ", "
		}
		base := i * 6
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args,
			entry.ID, entry.RunID, entry.Level, entry.Message, entry.NodeID, entry.Timestamp)
	}

	if _, err := s.conn().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting log batch: %w", err)
	}

	return nil
}

// List retrieves log entries for a run in ascending timestamp order.
func (s *LogStore) List(ctx context.Context, runID string, limit int) ([]*models.LogEntry, error) {
	query := `
		SELECT id, run_id, level, message, COALESCE(node_id, ''), timestamp
		FROM logs
		WHERE run_id = $1
		ORDER BY timestamp ASC, id ASC
		LIMIT $2`

	rows, err := s.conn().QueryContext(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	return s.scanLogs(rows)
}

// ListByNode retrieves log entries for a run filtered by node ID.
func (s *LogStore) ListByNode(ctx context.Context, runID, nodeID string, limit int) ([]*models.LogEntry, error) {
	query := `
		SELECT id, run_id, level, message, COALESCE(node_id, ''), timestamp
		FROM logs
		WHERE run_id = $1 AND node_id = $2
		ORDER BY timestamp ASC, id ASC
		LIMIT $3`

	rows, err := s.conn().QueryContext(ctx, query, runID, nodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying logs by node: %w", err)
	}
	defer rows.Close()

	return s.scanLogs(rows)
}

// DeleteByRun removes all log entries of a run.
func (s *LogStore) DeleteByRun(ctx context.Context, runID string) error {
	query := `DELETE FROM logs WHERE run_id = $1`

	if _, err := s.conn().ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("deleting run logs: %w", err)
	}

	return nil
}

// scanLogs scans multiple log entry rows.
func (s *LogStore) scanLogs(rows *sql.Rows) ([]*models.LogEntry, error) {
	var entries []*models.LogEntry

	for rows.Next() {
		entry := &models.LogEntry{}

		err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&entry.Level,
			&entry.Message,
			&entry.NodeID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log rows: %w", err)
	}

	return entries, nil
}

package models

import "time"

// Level represents the severity of a log entry.
type Level string

const (
	// LevelInfo is informational output from a workflow node.
	LevelInfo Level = "info"
	// LevelWarning indicates a recoverable problem.
	LevelWarning Level = "warning"
	// LevelError indicates a node or run failure.
	LevelError Level = "error"
)

// Levels returns all known log levels.
func Levels() []Level {
	return []Level{LevelInfo, LevelWarning, LevelError}
}

// Valid reports whether the level is one of the known severities.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

// LogEntry represents a single log entry emitted during a workflow run.
// Entries are immutable once received; consumers only filter and sort them.
type LogEntry struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	NodeID    string    `json:"node_id,omitempty"` // weak reference, display only
	Timestamp time.Time `json:"timestamp"`
}

// Package logview builds the filtered, formatted view of workflow run logs
// served to the console UI.
package logview

import (
	"fmt"
	"time"

	"github.com/flowdeck/console/internal/models"
)

// FilterLevel is a level filter selection: a log level or FilterAll.
type FilterLevel string

// FilterAll selects every entry regardless of level.
const FilterAll FilterLevel = "all"

// ParseFilter parses a filter selection from a query parameter.
// An empty string selects all levels.
func ParseFilter(s string) (FilterLevel, error) {
	switch s {
	case "", string(FilterAll):
		return FilterAll, nil
	case string(models.LevelInfo), string(models.LevelWarning), string(models.LevelError):
		return FilterLevel(s), nil
	}
	return "", fmt.Errorf("unknown log level filter %q", s)
}

// Color is the severity tag color shown next to an entry.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
)

// LevelColor returns the tag color for a level.
// Unknown levels use the info styling.
func LevelColor(level models.Level) Color {
	switch level {
	case models.LevelWarning:
		return ColorOrange
	case models.LevelError:
		return ColorRed
	default:
		return ColorBlue
	}
}

// timeLayout renders zero-padded, millisecond-precision local time.
const timeLayout = "15:04:05.000"

// FormatTime formats an entry timestamp for display.
func FormatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

// Row is a single rendered log line.
type Row struct {
	ID      string       `json:"id"`
	Time    string       `json:"time"`
	Level   models.Level `json:"level"`
	Color   Color        `json:"color"`
	Message string       `json:"message"`
	NodeID  string       `json:"node_id,omitempty"`
}

// View is the rendered result of filtering a log sequence.
// When Rows is empty, Placeholder carries the explicit empty-state text.
type View struct {
	Rows        []Row  `json:"rows"`
	Total       int    `json:"total"`
	Placeholder string `json:"placeholder,omitempty"`
}

// EmptyPlaceholder is the explicit empty-state text for a view with no rows.
const EmptyPlaceholder = "No logs to display"

// Filter returns the entries matching the selection, preserving their
// relative order. It never mutates the input; the result is a fresh slice.
// FilterAll returns every entry.
func Filter(entries []*models.LogEntry, level FilterLevel) []*models.LogEntry {
	out := make([]*models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		if level == FilterAll || string(e.Level) == string(level) {
			out = append(out, e)
		}
	}
	return out
}

// Render filters the entries and formats each surviving one as a Row.
func Render(entries []*models.LogEntry, level FilterLevel) View {
	filtered := Filter(entries, level)

	view := View{
		Rows:  make([]Row, 0, len(filtered)),
		Total: len(filtered),
	}
	for _, e := range filtered {
		view.Rows = append(view.Rows, Row{
			ID:      e.ID,
			Time:    FormatTime(e.Timestamp),
			Level:   e.Level,
			Color:   LevelColor(e.Level),
			Message: e.Message,
			NodeID:  e.NodeID,
		})
	}

	if len(view.Rows) == 0 {
		view.Placeholder = EmptyPlaceholder
	}
	return view
}

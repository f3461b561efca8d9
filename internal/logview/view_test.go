package logview

import (
	"testing"
	"time"

	"github.com/flowdeck/console/internal/models"
)

func entry(id string, level models.Level, message, nodeID string) *models.LogEntry {
	return &models.LogEntry{
		ID:        id,
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
		Timestamp: time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC),
	}
}

func sampleEntries() []*models.LogEntry {
	return []*models.LogEntry{
		entry("1", models.LevelInfo, "Workflow started", ""),
		entry("2", models.LevelInfo, "Reading source table", "node-1"),
		entry("3", models.LevelWarning, "Row count mismatch", "node-2"),
		entry("4", models.LevelError, "Failed to process request", "node-3"),
		entry("5", models.LevelInfo, "Retrying step", "node-3"),
	}
}

func TestFilterBySeverity(t *testing.T) {
	entries := sampleEntries()

	errs := Filter(entries, FilterLevel(models.LevelError))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(errs))
	}
	if errs[0].Message != "Failed to process request" {
		t.Errorf("unexpected error entry: %q", errs[0].Message)
	}

	infos := Filter(entries, FilterLevel(models.LevelInfo))
	if len(infos) != 3 {
		t.Fatalf("expected 3 info entries, got %d", len(infos))
	}
	wantOrder := []string{"1", "2", "5"}
	for i, id := range wantOrder {
		if infos[i].ID != id {
			t.Errorf("info entry %d: expected id %s, got %s", i, id, infos[i].ID)
		}
	}
}

func TestRenderView(t *testing.T) {
	view := Render(sampleEntries(), FilterAll)

	if view.Total != 5 {
		t.Fatalf("expected total 5, got %d", view.Total)
	}
	if view.Placeholder != "" {
		t.Errorf("unexpected placeholder %q for non-empty view", view.Placeholder)
	}
	if view.Rows[3].Color != ColorRed {
		t.Errorf("expected error row to be red, got %s", view.Rows[3].Color)
	}
	if view.Rows[2].Color != ColorOrange {
		t.Errorf("expected warning row to be orange, got %s", view.Rows[2].Color)
	}
	if view.Rows[0].Color != ColorBlue {
		t.Errorf("expected info row to be blue, got %s", view.Rows[0].Color)
	}
	if view.Rows[1].NodeID != "node-1" {
		t.Errorf("expected node annotation node-1, got %q", view.Rows[1].NodeID)
	}
	if view.Rows[0].NodeID != "" {
		t.Errorf("expected no node annotation, got %q", view.Rows[0].NodeID)
	}
}

func TestRenderEmptyState(t *testing.T) {
	view := Render(nil, FilterLevel(models.LevelError))

	if len(view.Rows) != 0 || view.Total != 0 {
		t.Fatalf("expected empty view, got %d rows", len(view.Rows))
	}
	if view.Placeholder != EmptyPlaceholder {
		t.Errorf("expected empty-state placeholder, got %q", view.Placeholder)
	}
}

func TestUnknownLevelFallsBackToInfoStyling(t *testing.T) {
	entries := []*models.LogEntry{
		entry("1", models.Level("debug"), "verbose output", ""),
	}

	view := Render(entries, FilterAll)
	if len(view.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(view.Rows))
	}
	if view.Rows[0].Color != ColorBlue {
		t.Errorf("expected unknown level to use info color, got %s", view.Rows[0].Color)
	}
	if view.Rows[0].Level != "debug" {
		t.Errorf("expected original level text to be kept, got %s", view.Rows[0].Level)
	}
}

func TestFormatTimeZeroPadded(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 6, 3, 7000000, time.Local)
	got := FormatTime(ts)
	if got != "09:06:03.007" {
		t.Errorf("expected zero-padded time 09:06:03.007, got %s", got)
	}
}

func TestParseFilter(t *testing.T) {
	cases := []struct {
		in      string
		want    FilterLevel
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"info", FilterLevel(models.LevelInfo), false},
		{"warning", FilterLevel(models.LevelWarning), false},
		{"error", FilterLevel(models.LevelError), false},
		{"verbose", "", true},
	}

	for _, c := range cases {
		got, err := ParseFilter(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseFilter(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFilter(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseFilter(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

package retention

import (
	"context"
	"testing"
	"time"

	"github.com/flowdeck/console/internal/logs"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

type fakeRunStore struct {
	finished []*models.WorkflowRun
}

func (f *fakeRunStore) Create(_ context.Context, _ *models.WorkflowRun) error { return nil }
func (f *fakeRunStore) Get(_ context.Context, _ string) (*models.WorkflowRun, error) {
	return nil, nil
}
func (f *fakeRunStore) ListByWorkflow(_ context.Context, _ string, _ int) ([]*models.WorkflowRun, error) {
	return nil, nil
}
func (f *fakeRunStore) ListFinishedBefore(_ context.Context, before time.Time) ([]*models.WorkflowRun, error) {
	var out []*models.WorkflowRun
	for _, run := range f.finished {
		if run.FinishedAt != nil && run.FinishedAt.Before(before) {
			out = append(out, run)
		}
	}
	return out, nil
}
func (f *fakeRunStore) Update(_ context.Context, _ *models.WorkflowRun) error { return nil }

type fakeLogStore struct {
	deletedRuns []string
}

func (f *fakeLogStore) CreateBatch(_ context.Context, _ []*models.LogEntry) error { return nil }
func (f *fakeLogStore) List(_ context.Context, _ string, _ int) ([]*models.LogEntry, error) {
	return nil, nil
}
func (f *fakeLogStore) ListByNode(_ context.Context, _, _ string, _ int) ([]*models.LogEntry, error) {
	return nil, nil
}
func (f *fakeLogStore) DeleteByRun(_ context.Context, runID string) error {
	f.deletedRuns = append(f.deletedRuns, runID)
	return nil
}
func finishedAt(t time.Time) *time.Time { return &t }

func TestSweepDeletesExpiredRunLogs(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now().Add(-1 * time.Hour)

	runs := &fakeRunStore{
		finished: []*models.WorkflowRun{
			{ID: "run-old", Status: models.RunStatusSucceeded, FinishedAt: finishedAt(old)},
			{ID: "run-fresh", Status: models.RunStatusFailed, FinishedAt: finishedAt(fresh)},
		},
	}
	logStore := &fakeLogStore{}
	tail := logs.NewTail(10)
	tail.Append(&models.LogEntry{ID: "e1", RunID: "run-old", Level: models.LevelInfo, Message: "x"})

	sweeper, err := NewSweeper(runs, logStore, tail, nil, Config{
		MaxAge:   24 * time.Hour,
		Schedule: "0 3 * * *",
	}, nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(logStore.deletedRuns) != 1 || logStore.deletedRuns[0] != "run-old" {
		t.Errorf("deleted runs = %v, want [run-old]", logStore.deletedRuns)
	}
	if got := tail.Recent("run-old", 10); len(got) != 0 {
		t.Errorf("tail still holds %d entries for swept run", len(got))
	}
}

type fakeSettingsStore struct {
	values map[string]string
}

func (f *fakeSettingsStore) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return value, nil
}
func (f *fakeSettingsStore) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}
func (f *fakeSettingsStore) GetAll(_ context.Context) (map[string]string, error) {
	return f.values, nil
}

func TestSweepHonorsRetentionOverride(t *testing.T) {
	// Finished 6h ago: inside the 24h default, outside a 2h override.
	finished := time.Now().Add(-6 * time.Hour)
	runs := &fakeRunStore{
		finished: []*models.WorkflowRun{
			{ID: "run-1", Status: models.RunStatusSucceeded, FinishedAt: finishedAt(finished)},
		},
	}
	logStore := &fakeLogStore{}
	settings := &fakeSettingsStore{values: map[string]string{SettingMaxAgeHours: "2"}}

	sweeper, err := NewSweeper(runs, logStore, nil, settings, Config{
		MaxAge:   24 * time.Hour,
		Schedule: "0 3 * * *",
	}, nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(logStore.deletedRuns) != 1 {
		t.Fatalf("override not applied, deleted runs = %v", logStore.deletedRuns)
	}

	// An unparsable override falls back to the configured default.
	settings.values[SettingMaxAgeHours] = "soon"
	logStore.deletedRuns = nil
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(logStore.deletedRuns) != 0 {
		t.Errorf("invalid override must not shrink the window, deleted %v", logStore.deletedRuns)
	}
}

func TestNewSweeperRejectsBadConfig(t *testing.T) {
	if _, err := NewSweeper(&fakeRunStore{}, &fakeLogStore{}, nil, nil, Config{
		MaxAge:   0,
		Schedule: "0 3 * * *",
	}, nil); err == nil {
		t.Error("expected error for zero max age")
	}

	if _, err := NewSweeper(&fakeRunStore{}, &fakeLogStore{}, nil, nil, Config{
		MaxAge:   time.Hour,
		Schedule: "not a cron line",
	}, nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

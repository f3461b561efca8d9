package handlers

import (
	"context"
	"time"

	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

// fakeStore wires stub sub-stores for handler tests. Sub-stores a test does
// not configure stay nil; touching one is a test bug and panics loudly.
type fakeStore struct {
	workflows store.WorkflowStore
	runs      store.RunStore
	logs      store.LogStore
	tasks     store.TaskStore
	sources   store.SourceStore
	users     store.UserStore
	settings  store.SettingsStore
}

func (s *fakeStore) Workflows() store.WorkflowStore { return s.workflows }
func (s *fakeStore) Runs() store.RunStore           { return s.runs }
func (s *fakeStore) Logs() store.LogStore           { return s.logs }
func (s *fakeStore) Tasks() store.TaskStore         { return s.tasks }
func (s *fakeStore) Sources() store.SourceStore     { return s.sources }
func (s *fakeStore) Users() store.UserStore         { return s.users }
func (s *fakeStore) Settings() store.SettingsStore  { return s.settings }
func (s *fakeStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}
func (s *fakeStore) Close() error { return nil }

// stubRunStore serves a fixed set of runs.
type stubRunStore struct {
	runs map[string]*models.WorkflowRun
}

func (s *stubRunStore) Create(_ context.Context, run *models.WorkflowRun) error {
	s.runs[run.ID] = run
	return nil
}

func (s *stubRunStore) Get(_ context.Context, id string) (*models.WorkflowRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (s *stubRunStore) ListByWorkflow(_ context.Context, workflowID string, _ int) ([]*models.WorkflowRun, error) {
	var out []*models.WorkflowRun
	for _, run := range s.runs {
		if run.WorkflowID == workflowID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (s *stubRunStore) ListFinishedBefore(_ context.Context, _ time.Time) ([]*models.WorkflowRun, error) {
	return nil, nil
}

func (s *stubRunStore) Update(_ context.Context, run *models.WorkflowRun) error {
	if _, ok := s.runs[run.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

// stubLogStore serves a fixed entry list and records created entries.
type stubLogStore struct {
	entries []*models.LogEntry
	created []*models.LogEntry
}

func (s *stubLogStore) CreateBatch(_ context.Context, entries []*models.LogEntry) error {
	s.created = append(s.created, entries...)
	return nil
}

func (s *stubLogStore) List(_ context.Context, runID string, limit int) ([]*models.LogEntry, error) {
	var out []*models.LogEntry
	for _, e := range s.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubLogStore) ListByNode(_ context.Context, runID, nodeID string, limit int) ([]*models.LogEntry, error) {
	var out []*models.LogEntry
	for _, e := range s.entries {
		if e.RunID == runID && e.NodeID == nodeID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubLogStore) DeleteByRun(_ context.Context, _ string) error { return nil }

// stubUserStore serves a fixed set of users.
type stubUserStore struct {
	users map[string]*store.User
}

func (s *stubUserStore) Create(_ context.Context, email, _ string) (*store.User, error) {
	user := &store.User{ID: "user-" + email, Email: email, CreatedAt: time.Now()}
	s.users[user.ID] = user
	return user, nil
}

func (s *stubUserStore) GetByEmail(_ context.Context, email string) (*store.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubUserStore) GetByID(_ context.Context, id string) (*store.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (s *stubUserStore) Authenticate(_ context.Context, _, _ string) (*store.User, error) {
	return nil, store.ErrInvalidCredentials
}

// stubSettingsStore keeps settings in a map.
type stubSettingsStore struct {
	values map[string]string
}

func (s *stubSettingsStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return value, nil
}

func (s *stubSettingsStore) Set(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

func (s *stubSettingsStore) GetAll(_ context.Context) (map[string]string, error) {
	return s.values, nil
}

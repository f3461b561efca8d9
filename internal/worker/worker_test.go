package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flowdeck/console/internal/engines"
	"github.com/flowdeck/console/internal/engines/cdc"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/queue"
	"github.com/flowdeck/console/internal/secrets"
	"github.com/flowdeck/console/internal/store"
)

// fakeTaskStore records task updates in memory.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.SyncTask
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*models.SyncTask)}
}

func (s *fakeTaskStore) Create(_ context.Context, task *models.SyncTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeTaskStore) Get(_ context.Context, id string) (*models.SyncTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *fakeTaskStore) List(_ context.Context, _ int) ([]*models.SyncTask, error) {
	return nil, nil
}

func (s *fakeTaskStore) Update(_ context.Context, task *models.SyncTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// fakeSourceStore serves a fixed set of sources.
type fakeSourceStore struct {
	sources map[string]*models.DataSource
}

func (s *fakeSourceStore) Create(_ context.Context, source *models.DataSource) error {
	s.sources[source.ID] = source
	return nil
}

func (s *fakeSourceStore) Get(_ context.Context, id string) (*models.DataSource, error) {
	source, ok := s.sources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return source, nil
}

func (s *fakeSourceStore) List(_ context.Context) ([]*models.DataSource, error) { return nil, nil }
func (s *fakeSourceStore) Delete(_ context.Context, _ string) error             { return nil }

// fakeStore exposes the task and source stores; the worker touches nothing else.
type fakeStore struct {
	tasks   *fakeTaskStore
	sources *fakeSourceStore
}

func (s *fakeStore) Workflows() store.WorkflowStore { return nil }
func (s *fakeStore) Runs() store.RunStore           { return nil }
func (s *fakeStore) Logs() store.LogStore           { return nil }
func (s *fakeStore) Tasks() store.TaskStore         { return s.tasks }
func (s *fakeStore) Sources() store.SourceStore     { return s.sources }
func (s *fakeStore) Users() store.UserStore         { return nil }
func (s *fakeStore) Settings() store.SettingsStore  { return nil }
func (s *fakeStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}
func (s *fakeStore) Close() error { return nil }

// fakeQueue records acks and nacks.
type fakeQueue struct {
	mu     sync.Mutex
	acked  []string
	nacked []string
}

func (q *fakeQueue) Enqueue(_ context.Context, _ *models.SyncTask) error { return nil }
func (q *fakeQueue) Dequeue(_ context.Context) (*models.SyncTask, error) {
	return nil, queue.ErrNoJobs
}
func (q *fakeQueue) Ack(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, taskID)
	return nil
}
func (q *fakeQueue) Nack(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, taskID)
	return nil
}

func newTestWorker(t *testing.T, cdcURL string, st *fakeStore, q *fakeQueue) *Worker {
	t.Helper()
	cdcClient := cdc.NewClient(engines.Config{BaseURL: cdcURL, Timeout: 5 * time.Second})
	w, err := NewWorker(&Config{
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
	}, st, q, cdcClient, nil, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return w
}

func TestProcessTaskSucceeds(t *testing.T) {
	var polls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/syncs":
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-1", Status: "running"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/syncs/sync-1":
			mu.Lock()
			polls++
			n := polls
			mu.Unlock()
			status := "running"
			if n >= 2 {
				status = "succeeded"
			}
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-1", Status: status, RowsSynced: 1200})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	st := &fakeStore{tasks: newFakeTaskStore()}
	task := &models.SyncTask{
		ID:       "task-1",
		SourceID: "src-1",
		TargetID: "tgt-1",
		Mode:     models.SyncModeFull,
		Status:   models.TaskStatusQueued,
	}
	st.tasks.Create(context.Background(), task)

	w := newTestWorker(t, server.URL, st, &fakeQueue{})
	if err := w.ProcessSingleTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessSingleTask: %v", err)
	}

	stored, _ := st.tasks.Get(context.Background(), "task-1")
	if stored.Status != models.TaskStatusSucceeded {
		t.Errorf("expected succeeded, got %s", stored.Status)
	}
	if stored.LastError != "" {
		t.Errorf("expected empty last error, got %q", stored.LastError)
	}
}

func TestProcessTaskSyncFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/syncs":
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-2", Status: "running"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/syncs/sync-2":
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-2", Status: "failed", Error: "source unreachable"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	st := &fakeStore{tasks: newFakeTaskStore()}
	task := &models.SyncTask{ID: "task-2", SourceID: "s", TargetID: "t", Mode: models.SyncModeFull}
	st.tasks.Create(context.Background(), task)

	w := newTestWorker(t, server.URL, st, &fakeQueue{})
	err := w.ProcessSingleTask(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for failed sync")
	}
}

func TestRetryOrFailRequeuesUntilBudgetSpent(t *testing.T) {
	st := &fakeStore{tasks: newFakeTaskStore()}
	q := &fakeQueue{}
	w := newTestWorker(t, "http://localhost:0", st, q)

	task := &models.SyncTask{ID: "task-3", Mode: models.SyncModeFull, Status: models.TaskStatusRunning}
	st.tasks.Create(context.Background(), task)

	w.retryOrFail(context.Background(), task, context.DeadlineExceeded)
	stored, _ := st.tasks.Get(context.Background(), "task-3")
	if stored.Status != models.TaskStatusQueued {
		t.Fatalf("expected requeue on first failure, got %s", stored.Status)
	}
	if len(q.nacked) != 1 {
		t.Fatalf("expected 1 nack, got %d", len(q.nacked))
	}

	w.retryOrFail(context.Background(), task, context.DeadlineExceeded)
	w.retryOrFail(context.Background(), task, context.DeadlineExceeded)
	stored, _ = st.tasks.Get(context.Background(), "task-3")
	if stored.Status != models.TaskStatusFailed {
		t.Fatalf("expected failed after budget spent, got %s", stored.Status)
	}
	if stored.LastError == "" {
		t.Error("expected last error to be recorded")
	}
	if len(q.acked) != 1 {
		t.Errorf("expected exhausted task to be acked, got %d acks", len(q.acked))
	}
}

func TestProcessTaskSendsDecryptedCredentials(t *testing.T) {
	publicKey, privateKey, err := secrets.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	vault, err := secrets.NewVault(&secrets.Config{
		AgePublicKey:  publicKey,
		AgePrivateKey: privateKey,
	}, nil)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	plaintext := []byte(`{"host":"db.internal","password":"hunter2"}`)
	encrypted, err := vault.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	var got cdc.SyncRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/syncs":
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-5", Status: "succeeded"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/syncs/sync-5":
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-5", Status: "succeeded"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	st := &fakeStore{
		tasks: newFakeTaskStore(),
		sources: &fakeSourceStore{sources: map[string]*models.DataSource{
			"src-5": {ID: "src-5", Name: "orders-db", Kind: models.SourceKindPostgres, Credentials: encrypted},
		}},
	}
	task := &models.SyncTask{ID: "task-5", SourceID: "src-5", TargetID: "tgt-5", Mode: models.SyncModeIncremental}
	st.tasks.Create(context.Background(), task)

	cdcClient := cdc.NewClient(engines.Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	w, err := NewWorker(&Config{Concurrency: 1, PollInterval: 10 * time.Millisecond, MaxAttempts: 1}, st, &fakeQueue{}, cdcClient, vault, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	if err := w.ProcessSingleTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessSingleTask: %v", err)
	}
	if string(got.SourceCredentials) != string(plaintext) {
		t.Errorf("expected decrypted credentials in sync request, got %s", got.SourceCredentials)
	}
}

func TestRetryOrFailUpstreamRejectionIsTerminal(t *testing.T) {
	st := &fakeStore{tasks: newFakeTaskStore()}
	q := &fakeQueue{}
	w := newTestWorker(t, "http://localhost:0", st, q)

	task := &models.SyncTask{ID: "task-4", Mode: models.SyncModeIncremental, Status: models.TaskStatusRunning}
	st.tasks.Create(context.Background(), task)

	upstream := &engines.Error{Engine: "cdc", StatusCode: 422, Body: `{"error":"unknown source"}`}
	w.retryOrFail(context.Background(), task, upstream)

	stored, _ := st.tasks.Get(context.Background(), "task-4")
	if stored.Status != models.TaskStatusFailed {
		t.Fatalf("expected immediate failure on upstream rejection, got %s", stored.Status)
	}
	if len(q.nacked) != 0 {
		t.Errorf("upstream rejection should not be requeued")
	}
}

func TestProcessTaskTimesOutOnStalledSync(t *testing.T) {
	// The engine accepts the sync and then reports a state the worker
	// does not recognize as terminal, forever.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/syncs":
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-stuck", Status: "running"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/syncs/sync-stuck":
			json.NewEncoder(w).Encode(&cdc.Sync{ID: "sync-stuck", Status: "paused"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	st := &fakeStore{tasks: newFakeTaskStore()}
	task := &models.SyncTask{
		ID:       "task-stuck",
		SourceID: "src-1",
		TargetID: "tgt-1",
		Mode:     models.SyncModeFull,
		Status:   models.TaskStatusQueued,
	}
	st.tasks.Create(context.Background(), task)

	cdcClient := cdc.NewClient(engines.Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	w, err := NewWorker(&Config{
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  1,
		TaskTimeout:  150 * time.Millisecond,
	}, st, &fakeQueue{}, cdcClient, nil, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	start := time.Now()
	err = w.ProcessSingleTask(context.Background(), task)
	if err == nil {
		t.Fatal("expected a stalled sync to fail the attempt")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("attempt not bounded by the task timeout, took %s", elapsed)
	}
}

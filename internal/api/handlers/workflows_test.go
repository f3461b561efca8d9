package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/console/internal/engines"
	"github.com/flowdeck/console/internal/engines/scheduler"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
	"github.com/flowdeck/console/internal/store/postgres"
)

// stubWorkflowStore keeps workflows in memory and enforces unique names.
type stubWorkflowStore struct {
	workflows map[string]*models.Workflow
}

func newStubWorkflowStore() *stubWorkflowStore {
	return &stubWorkflowStore{workflows: make(map[string]*models.Workflow)}
}

func (s *stubWorkflowStore) Create(_ context.Context, workflow *models.Workflow) error {
	for _, existing := range s.workflows {
		if existing.OwnerID == workflow.OwnerID && existing.Name == workflow.Name {
			return postgres.ErrDuplicateName
		}
	}
	s.workflows[workflow.ID] = workflow
	return nil
}

func (s *stubWorkflowStore) Get(_ context.Context, id string) (*models.Workflow, error) {
	workflow, ok := s.workflows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return workflow, nil
}

func (s *stubWorkflowStore) List(_ context.Context, ownerID string) ([]*models.Workflow, error) {
	var out []*models.Workflow
	for _, workflow := range s.workflows {
		if workflow.OwnerID == ownerID {
			out = append(out, workflow)
		}
	}
	return out, nil
}

func (s *stubWorkflowStore) Update(_ context.Context, workflow *models.Workflow) error {
	if _, ok := s.workflows[workflow.ID]; !ok {
		return store.ErrNotFound
	}
	s.workflows[workflow.ID] = workflow
	return nil
}

func (s *stubWorkflowStore) Delete(_ context.Context, id string) error {
	if _, ok := s.workflows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

func workflowTestRouter(h *WorkflowHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/v1/workflows", h.Create)
	r.Get("/v1/workflows", h.List)
	r.Post("/v1/workflows/{workflowID}/runs", h.CreateRun)
	return r
}

const validWorkflowJSON = `{
	"name": "orders-etl",
	"nodes": [
		{"id": "extract", "type": "input"},
		{"id": "clean", "type": "transform"},
		{"id": "load", "type": "output"}
	],
	"edges": [
		{"from": "extract", "to": "clean"},
		{"from": "clean", "to": "load"}
	]
}`

func TestWorkflowCreate(t *testing.T) {
	st := &fakeStore{workflows: newStubWorkflowStore()}
	h := NewWorkflowHandler(st, nil, slog.Default())
	router := workflowTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/workflows", strings.NewReader(validWorkflowJSON)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var workflow models.Workflow
	if err := json.Unmarshal(rec.Body.Bytes(), &workflow); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if workflow.Name != "orders-etl" || len(workflow.Nodes) != 3 {
		t.Errorf("unexpected workflow %+v", workflow)
	}
}

func TestWorkflowCreateRejectsCycle(t *testing.T) {
	st := &fakeStore{workflows: newStubWorkflowStore()}
	h := NewWorkflowHandler(st, nil, slog.Default())
	router := workflowTestRouter(h)

	body := `{
		"name": "loop",
		"nodes": [
			{"id": "a", "type": "transform"},
			{"id": "b", "type": "transform"}
		],
		"edges": [
			{"from": "a", "to": "b"},
			{"from": "b", "to": "a"}
		]
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/workflows", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cyclic definition, got %d", rec.Code)
	}
}

func TestWorkflowCreateDuplicateName(t *testing.T) {
	st := &fakeStore{workflows: newStubWorkflowStore()}
	h := NewWorkflowHandler(st, nil, slog.Default())
	router := workflowTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/workflows", strings.NewReader(validWorkflowJSON)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/workflows", strings.NewReader(validWorkflowJSON)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rec.Code)
	}
}

func TestCreateRunRegistersWithScheduler(t *testing.T) {
	var got scheduler.ScheduleRequest
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&scheduler.Schedule{ID: "run-42", WorkflowID: got.WorkflowID})
	}))
	defer engine.Close()

	workflows := newStubWorkflowStore()
	workflows.workflows["wf-1"] = &models.Workflow{
		ID:   "wf-1",
		Name: "orders-etl",
		Nodes: []models.WorkflowNode{
			{ID: "extract", Type: models.NodeTypeInput},
			{ID: "load", Type: models.NodeTypeOutput},
		},
	}
	runs := &stubRunStore{runs: make(map[string]*models.WorkflowRun)}
	st := &fakeStore{workflows: workflows, runs: runs}

	sched := scheduler.NewClient(engines.Config{BaseURL: engine.URL})
	h := NewWorkflowHandler(st, sched, slog.Default())
	router := workflowTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/workflows/wf-1/runs", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.WorkflowID != "wf-1" || got.RunAt == "" {
		t.Errorf("schedule request not sent: %+v", got)
	}

	run, ok := runs.runs["run-42"]
	if !ok {
		t.Fatal("run not recorded under schedule id")
	}
	if run.Status != models.RunStatusPending || run.Trigger != models.TriggerManual {
		t.Errorf("unexpected run state %+v", run)
	}
	if len(run.NodeIDs) != 2 {
		t.Errorf("expected node ids recorded, got %v", run.NodeIDs)
	}
}

func TestCreateRunSchedulerRejection(t *testing.T) {
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"scheduler at capacity"}`))
	}))
	defer engine.Close()

	workflows := newStubWorkflowStore()
	workflows.workflows["wf-1"] = &models.Workflow{ID: "wf-1", Name: "orders-etl"}
	runs := &stubRunStore{runs: make(map[string]*models.WorkflowRun)}
	st := &fakeStore{workflows: workflows, runs: runs}

	sched := scheduler.NewClient(engines.Config{BaseURL: engine.URL})
	h := NewWorkflowHandler(st, sched, slog.Default())
	router := workflowTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/workflows/wf-1/runs", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if len(runs.runs) != 0 {
		t.Error("no run should be recorded when the scheduler rejects")
	}
}

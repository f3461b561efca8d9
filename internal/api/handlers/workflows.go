package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowdeck/console/internal/api/middleware"
	"github.com/flowdeck/console/internal/engines/scheduler"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/pipeline"
	"github.com/flowdeck/console/internal/store"
	"github.com/flowdeck/console/internal/store/postgres"
)

// WorkflowHandler handles workflow CRUD and run triggering.
type WorkflowHandler struct {
	store     store.Store
	scheduler *scheduler.Client
	logger    *slog.Logger
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(st store.Store, sched *scheduler.Client, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		store:     st,
		scheduler: sched,
		logger:    logger,
	}
}

// Create handles POST /v1/workflows.
// The body is a workflow definition; it is validated structurally
// (unique node ids, known edges, acyclic) before being persisted.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var def pipeline.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}

	if err := def.Validate(); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	workflow := def.ToWorkflow(uuid.NewString(), middleware.GetUserID(r.Context()))

	if err := h.store.Workflows().Create(r.Context(), workflow); err != nil {
		if errors.Is(err, postgres.ErrDuplicateName) {
			WriteConflict(w, "A workflow with this name already exists")
			return
		}
		h.logger.Error("failed to create workflow", "error", err)
		WriteInternalError(w, "Failed to create workflow")
		return
	}

	WriteJSON(w, http.StatusCreated, workflow)
}

// List handles GET /v1/workflows.
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.store.Workflows().List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list workflows", "error", err)
		WriteInternalError(w, "Failed to list workflows")
		return
	}
	if workflows == nil {
		workflows = []*models.Workflow{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"workflows": workflows})
}

// Get handles GET /v1/workflows/{workflowID}.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, workflow)
}

// updateRequest holds the mutable workflow fields.
type updateRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Nodes       []pipeline.Node `json:"nodes,omitempty"`
	Edges       []pipeline.Edge `json:"edges,omitempty"`
}

// Update handles PATCH /v1/workflows/{workflowID}.
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}

	if req.Name != nil {
		workflow.Name = *req.Name
	}
	if req.Description != nil {
		workflow.Description = *req.Description
	}
	if req.Nodes != nil {
		def := pipeline.Definition{Name: workflow.Name, Nodes: req.Nodes, Edges: req.Edges}
		if err := def.Validate(); err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		updated := def.ToWorkflow(workflow.ID, workflow.OwnerID)
		workflow.Nodes = updated.Nodes
		workflow.Edges = updated.Edges
	}

	if err := h.store.Workflows().Update(r.Context(), workflow); err != nil {
		if errors.Is(err, postgres.ErrDuplicateName) {
			WriteConflict(w, "A workflow with this name already exists")
			return
		}
		h.logger.Error("failed to update workflow", "error", err, "workflow_id", workflow.ID)
		WriteInternalError(w, "Failed to update workflow")
		return
	}

	WriteJSON(w, http.StatusOK, workflow)
}

// Delete handles DELETE /v1/workflows/{workflowID}.
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.store.Workflows().Delete(r.Context(), workflow.ID); err != nil {
		h.logger.Error("failed to delete workflow", "error", err, "workflow_id", workflow.ID)
		WriteInternalError(w, "Failed to delete workflow")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateRun handles POST /v1/workflows/{workflowID}/runs.
// The run is registered with the scheduler engine for immediate execution,
// then recorded locally in pending state.
func (h *WorkflowHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	schedule, err := h.scheduler.ScheduleRun(r.Context(), &scheduler.ScheduleRequest{
		WorkflowID: workflow.ID,
		RunAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("scheduler rejected run", "error", err, "workflow_id", workflow.ID)
		WriteEngineError(w, err)
		return
	}

	nodeIDs := make([]string, 0, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodeIDs = append(nodeIDs, node.ID)
	}

	run := &models.WorkflowRun{
		ID:         schedule.ID,
		WorkflowID: workflow.ID,
		Status:     models.RunStatusPending,
		Trigger:    models.TriggerManual,
		NodeIDs:    nodeIDs,
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	if err := h.store.Runs().Create(r.Context(), run); err != nil {
		h.logger.Error("failed to record run", "error", err, "workflow_id", workflow.ID)
		WriteInternalError(w, "Failed to record run")
		return
	}

	WriteJSON(w, http.StatusCreated, run)
}

// ListRuns handles GET /v1/workflows/{workflowID}/runs.
func (h *WorkflowHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	workflow, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	runs, err := h.store.Runs().ListByWorkflow(r.Context(), workflow.ID, limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err, "workflow_id", workflow.ID)
		WriteInternalError(w, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*models.WorkflowRun{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// loadOwned loads the workflow from the URL and verifies ownership.
// It writes the error response itself and returns ok=false on failure.
func (h *WorkflowHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Workflow, bool) {
	workflowID := chi.URLParam(r, "workflowID")
	if workflowID == "" {
		WriteBadRequest(w, "Workflow ID is required")
		return nil, false
	}

	workflow, err := h.store.Workflows().Get(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Workflow not found")
			return nil, false
		}
		h.logger.Error("failed to get workflow", "error", err, "workflow_id", workflowID)
		WriteInternalError(w, "Failed to retrieve workflow")
		return nil, false
	}

	if userID := middleware.GetUserID(r.Context()); userID != "" && workflow.OwnerID != userID {
		WriteForbidden(w, "Access denied")
		return nil, false
	}

	return workflow, true
}

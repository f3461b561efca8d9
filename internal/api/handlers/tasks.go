package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/queue"
	"github.com/flowdeck/console/internal/store"
)

// TaskHandler handles sync task submission and inspection.
type TaskHandler struct {
	store  store.Store
	queue  queue.Queue
	logger *slog.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(st store.Store, q queue.Queue, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		store:  st,
		queue:  q,
		logger: logger,
	}
}

// createTaskRequest is the task submission payload.
type createTaskRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Mode     string `json:"mode"`
}

// Create handles POST /v1/tasks - records a sync task and enqueues it.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		WriteBadRequest(w, "source_id and target_id are required")
		return
	}
	mode := models.SyncMode(req.Mode)
	if mode != models.SyncModeFull && mode != models.SyncModeIncremental {
		WriteBadRequest(w, "mode must be full or incremental")
		return
	}

	if _, err := h.store.Sources().Get(r.Context(), req.SourceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Source not found")
			return
		}
		h.logger.Error("failed to get source", "error", err, "source_id", req.SourceID)
		WriteInternalError(w, "Failed to create task")
		return
	}

	task := &models.SyncTask{
		ID:       uuid.NewString(),
		SourceID: req.SourceID,
		TargetID: req.TargetID,
		Mode:     mode,
		Status:   models.TaskStatusQueued,
	}

	if err := h.store.Tasks().Create(r.Context(), task); err != nil {
		h.logger.Error("failed to record task", "error", err)
		WriteInternalError(w, "Failed to create task")
		return
	}

	if err := h.queue.Enqueue(r.Context(), task); err != nil {
		h.logger.Error("failed to enqueue task", "error", err, "task_id", task.ID)
		WriteInternalError(w, "Failed to enqueue task")
		return
	}

	WriteJSON(w, http.StatusCreated, task)
}

// List handles GET /v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	tasks, err := h.store.Tasks().List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		WriteInternalError(w, "Failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.SyncTask{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// Get handles GET /v1/tasks/{taskID}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		WriteBadRequest(w, "Task ID is required")
		return
	}

	task, err := h.store.Tasks().Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Task not found")
			return
		}
		h.logger.Error("failed to get task", "error", err, "task_id", taskID)
		WriteInternalError(w, "Failed to retrieve task")
		return
	}

	WriteJSON(w, http.StatusOK, task)
}

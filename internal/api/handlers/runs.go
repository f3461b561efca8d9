package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/console/internal/engines/scheduler"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

// RunHandler handles workflow run inspection and cancellation.
type RunHandler struct {
	store     store.Store
	scheduler *scheduler.Client
	logger    *slog.Logger
}

// NewRunHandler creates a new run handler.
func NewRunHandler(st store.Store, sched *scheduler.Client, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		store:     st,
		scheduler: sched,
		logger:    logger,
	}
}

// Get handles GET /v1/runs/{runID}.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// Cancel handles POST /v1/runs/{runID}/cancel.
// The cancellation is forwarded to the scheduler engine first; only when the
// engine accepts it is the run marked canceled locally.
func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}

	if run.Status.IsTerminal() {
		WriteConflict(w, "Run is already finished")
		return
	}

	if err := h.scheduler.CancelRun(r.Context(), run.ID); err != nil {
		h.logger.Error("scheduler rejected cancellation", "error", err, "run_id", run.ID)
		WriteEngineError(w, err)
		return
	}

	now := time.Now().UTC()
	run.Status = models.RunStatusCanceled
	run.FinishedAt = &now

	if err := h.store.Runs().Update(r.Context(), run); err != nil {
		h.logger.Error("failed to mark run canceled", "error", err, "run_id", run.ID)
		WriteInternalError(w, "Failed to cancel run")
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

func (h *RunHandler) load(w http.ResponseWriter, r *http.Request) (*models.WorkflowRun, bool) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		WriteBadRequest(w, "Run ID is required")
		return nil, false
	}

	run, err := h.store.Runs().Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Run not found")
			return nil, false
		}
		h.logger.Error("failed to get run", "error", err, "run_id", runID)
		WriteInternalError(w, "Failed to retrieve run")
		return nil, false
	}

	return run, true
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/console/internal/engines/cdc"
	"github.com/flowdeck/console/internal/engines/metadata"
	"github.com/flowdeck/console/internal/engines/scheduler"
	"github.com/flowdeck/console/internal/engines/transform"
)

// EngineHandler exposes the external engines as thin pass-throughs.
// Requests are forwarded with the documented parameters and the engine's
// JSON is surfaced as-is; no business validation happens here.
type EngineHandler struct {
	transform *transform.Client
	cdc       *cdc.Client
	scheduler *scheduler.Client
	metadata  *metadata.Client
	logger    *slog.Logger
}

// NewEngineHandler creates a new engine pass-through handler.
func NewEngineHandler(tc *transform.Client, cc *cdc.Client, sc *scheduler.Client, mc *metadata.Client, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{
		transform: tc,
		cdc:       cc,
		scheduler: sc,
		metadata:  mc,
		logger:    logger,
	}
}

// SubmitTransformJob handles POST /v1/engines/transform/jobs.
func (h *EngineHandler) SubmitTransformJob(w http.ResponseWriter, r *http.Request) {
	var req transform.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}

	job, err := h.transform.SubmitJob(r.Context(), &req)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

// TransformJobStatus handles GET /v1/engines/transform/jobs/{jobID}.
func (h *EngineHandler) TransformJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.transform.JobStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// PreviewTransformStep handles POST /v1/engines/transform/jobs/{jobID}/steps/{stepID}/preview.
func (h *EngineHandler) PreviewTransformStep(w http.ResponseWriter, r *http.Request) {
	rows := 100
	if rowsStr := r.URL.Query().Get("rows"); rowsStr != "" {
		if n, err := strconv.Atoi(rowsStr); err == nil && n > 0 && n <= 1000 {
			rows = n
		}
	}

	preview, err := h.transform.PreviewStep(r.Context(),
		chi.URLParam(r, "jobID"), chi.URLParam(r, "stepID"), rows)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, preview)
}

// CreateSync handles POST /v1/engines/cdc/syncs.
func (h *EngineHandler) CreateSync(w http.ResponseWriter, r *http.Request) {
	var req cdc.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}

	sync, err := h.cdc.CreateSync(r.Context(), &req)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, sync)
}

// ListSyncs handles GET /v1/engines/cdc/syncs.
func (h *EngineHandler) ListSyncs(w http.ResponseWriter, r *http.Request) {
	syncs, err := h.cdc.ListSyncs(r.Context())
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	if syncs == nil {
		syncs = []*cdc.Sync{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"syncs": syncs})
}

// SyncStatus handles GET /v1/engines/cdc/syncs/{syncID}.
func (h *EngineHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	sync, err := h.cdc.SyncStatus(r.Context(), chi.URLParam(r, "syncID"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sync)
}

// CreateSchedule handles POST /v1/engines/scheduler/schedules.
func (h *EngineHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduler.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}

	schedule, err := h.scheduler.ScheduleRun(r.Context(), &req)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, schedule)
}

// DeleteSchedule handles DELETE /v1/engines/scheduler/schedules/{scheduleID}.
func (h *EngineHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.CancelRun(r.Context(), chi.URLParam(r, "scheduleID")); err != nil {
		WriteEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextRuns handles GET /v1/engines/scheduler/schedules/{workflowID}/next.
func (h *EngineHandler) NextRuns(w http.ResponseWriter, r *http.Request) {
	count := 5
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 && n <= 100 {
			count = n
		}
	}

	runs, err := h.scheduler.NextRuns(r.Context(), chi.URLParam(r, "workflowID"), count)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetTable handles GET /v1/engines/metadata/tables/{tableName}.
func (h *EngineHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table, err := h.metadata.GetTable(r.Context(), chi.URLParam(r, "tableName"))
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, table)
}

// TableLineage handles GET /v1/engines/metadata/tables/{tableName}/lineage.
func (h *EngineHandler) TableLineage(w http.ResponseWriter, r *http.Request) {
	depth := 2
	if depthStr := r.URL.Query().Get("depth"); depthStr != "" {
		if n, err := strconv.Atoi(depthStr); err == nil && n > 0 && n <= 10 {
			depth = n
		}
	}

	graph, err := h.metadata.Lineage(r.Context(), chi.URLParam(r, "tableName"), depth)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, graph)
}

// SearchTables handles GET /v1/engines/metadata/search.
func (h *EngineHandler) SearchTables(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		WriteBadRequest(w, "q is required")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	tables, err := h.metadata.SearchTables(r.Context(), query, limit)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	if tables == nil {
		tables = []*metadata.Table{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

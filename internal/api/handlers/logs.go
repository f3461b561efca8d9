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

	"github.com/flowdeck/console/internal/ingest"
	"github.com/flowdeck/console/internal/logview"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

// LogHandler serves run log views and accepts engine log ingest.
type LogHandler struct {
	store    store.Store
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

// NewLogHandler creates a new log handler.
func NewLogHandler(st store.Store, ingestor *ingest.Ingestor, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		store:    st,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Get handles GET /v1/runs/{runID}/logs - returns the rendered log view.
// Supported query parameters: level (info|warning|error|all), node_id, limit.
func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		WriteBadRequest(w, "Run ID is required")
		return
	}

	filter, err := logview.ParseFilter(r.URL.Query().Get("level"))
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	limit := 500
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 5000 {
			limit = l
		}
	}

	if _, err := h.store.Runs().Get(r.Context(), runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Run not found")
			return
		}
		h.logger.Error("failed to get run", "error", err, "run_id", runID)
		WriteInternalError(w, "Failed to retrieve logs")
		return
	}

	var entries []*models.LogEntry
	if nodeID := r.URL.Query().Get("node_id"); nodeID != "" {
		entries, err = h.store.Logs().ListByNode(r.Context(), runID, nodeID, limit)
	} else {
		entries, err = h.store.Logs().List(r.Context(), runID, limit)
	}
	if err != nil {
		h.logger.Error("failed to list logs", "error", err, "run_id", runID)
		WriteInternalError(w, "Failed to retrieve logs")
		return
	}

	view := logview.Render(entries, filter)

	WriteJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"view":   view,
	})
}

// ingestRequest is the engine-side batch ingest payload.
type ingestRequest struct {
	Entries []struct {
		Level     string    `json:"level"`
		Message   string    `json:"message"`
		NodeID    string    `json:"node_id,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"entries"`
}

// Ingest handles POST /v1/runs/{runID}/logs - batch log ingest from engines.
func (h *LogHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		WriteBadRequest(w, "Run ID is required")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}
	if len(req.Entries) == 0 {
		WriteBadRequest(w, "No entries provided")
		return
	}

	if _, err := h.store.Runs().Get(r.Context(), runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Run not found")
			return
		}
		h.logger.Error("failed to get run", "error", err, "run_id", runID)
		WriteInternalError(w, "Failed to ingest logs")
		return
	}

	entries := make([]*models.LogEntry, 0, len(req.Entries))
	for _, in := range req.Entries {
		if in.Message == "" {
			continue
		}
		// Unknown levels are stored as-is and rendered as info downstream.
		level := models.Level(in.Level)
		ts := in.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		entries = append(entries, &models.LogEntry{
			ID:        uuid.NewString(),
			RunID:     runID,
			Level:     level,
			Message:   in.Message,
			NodeID:    in.NodeID,
			Timestamp: ts,
		})
	}

	accepted := h.ingestor.SubmitBatch(entries)

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"accepted": accepted,
		"dropped":  len(entries) - accepted,
	})
}

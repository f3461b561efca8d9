package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/console/internal/logs"
)

// LogStreamHandler streams run logs in real time via Server-Sent Events.
type LogStreamHandler struct {
	broker *logs.Broker
	tail   *logs.Tail
	logger *slog.Logger
}

// NewLogStreamHandler creates a new log stream handler.
func NewLogStreamHandler(broker *logs.Broker, tail *logs.Tail, logger *slog.Logger) *LogStreamHandler {
	return &LogStreamHandler{
		broker: broker,
		tail:   tail,
		logger: logger,
	}
}

// Stream handles GET /v1/runs/{runID}/logs/stream - live tail via SSE.
// An optional node_id query parameter narrows the stream to one node.
func (h *LogStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		WriteBadRequest(w, "Run ID is required")
		return
	}
	nodeID := r.URL.Query().Get("node_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternalError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	flusher.Flush()

	h.logger.Info("log stream started", "run_id", runID, "node_id", nodeID)

	// Subscribe before priming so nothing published in between is lost.
	sub := h.broker.Subscribe(r.Context(), runID, nodeID)
	defer h.broker.Unsubscribe(sub)

	h.sendEvent(w, flusher, "connected", map[string]string{
		"run_id":  runID,
		"node_id": nodeID,
	})

	// Prime the stream with recent entries already buffered for the run.
	seen := make(map[string]bool)
	for _, entry := range h.tail.Recent(runID, 200) {
		if nodeID != "" && entry.NodeID != nodeID {
			continue
		}
		seen[entry.ID] = true
		h.sendEvent(w, flusher, "log", entry)
	}

	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("log stream closed by client", "run_id", runID)
			return
		case <-pingTicker.C:
			h.sendEvent(w, flusher, "ping", map[string]int64{"time": time.Now().Unix()})
		case entry, ok := <-sub.Ch:
			if !ok {
				return
			}
			if seen[entry.ID] {
				delete(seen, entry.ID)
				continue
			}
			h.sendEvent(w, flusher, "log", entry)
		}
	}
}

// sendEvent sends a Server-Sent Event.
func (h *LogStreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal event data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/flowdeck/console/internal/logs"
)

// LogWSHandler streams run logs over a websocket connection.
type LogWSHandler struct {
	broker   *logs.Broker
	tail     *logs.Tail
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLogWSHandler creates a new websocket log handler.
func NewLogWSHandler(broker *logs.Broker, tail *logs.Tail, logger *slog.Logger) *LogWSHandler {
	return &LogWSHandler{
		broker: broker,
		tail:   tail,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The console UI is served from a different origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles GET /v1/runs/{runID}/logs/ws - live tail over websocket.
func (h *LogWSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		WriteBadRequest(w, "Run ID is required")
		return
	}
	nodeID := r.URL.Query().Get("node_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "run_id", runID)
		return
	}
	defer conn.Close()

	h.logger.Info("websocket log stream started", "run_id", runID, "node_id", nodeID)

	sub := h.broker.Subscribe(r.Context(), runID, nodeID)
	defer h.broker.Unsubscribe(sub)

	// Discard client frames, but notice closes.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	seen := make(map[string]bool)
	for _, entry := range h.tail.Recent(runID, 200) {
		if nodeID != "" && entry.NodeID != nodeID {
			continue
		}
		seen[entry.ID] = true
		if err := conn.WriteJSON(entry); err != nil {
			return
		}
	}

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			h.logger.Info("websocket closed by client", "run_id", runID)
			return
		case <-pingTicker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case entry, ok := <-sub.Ch:
			if !ok {
				return
			}
			if seen[entry.ID] {
				delete(seen, entry.ID)
				continue
			}
			if err := conn.WriteJSON(entry); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/console/internal/store"
)

// SettingsHandler exposes global console settings, such as the runtime
// log retention override.
type SettingsHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(st store.Store, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:  st,
		logger: logger,
	}
}

// List handles GET /v1/settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	values, err := h.store.Settings().GetAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list settings", "error", err)
		WriteInternalError(w, "Failed to list settings")
		return
	}
	if values == nil {
		values = map[string]string{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"settings": values})
}

type putSettingRequest struct {
	Value string `json:"value"`
}

// Put handles PUT /v1/settings/{key}.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		WriteBadRequest(w, "Setting key is required")
		return
	}

	var req putSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}
	if req.Value == "" {
		WriteBadRequest(w, "value is required")
		return
	}

	if err := h.store.Settings().Set(r.Context(), key, req.Value); err != nil {
		h.logger.Error("failed to store setting", "key", key, "error", err)
		WriteInternalError(w, "Failed to store setting")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": req.Value,
	})
}

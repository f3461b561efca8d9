package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/secrets"
	"github.com/flowdeck/console/internal/store"
	"github.com/flowdeck/console/internal/store/postgres"
)

// SourceHandler handles data source registration.
// Credentials are encrypted with the vault before they touch the database
// and are never returned in responses.
type SourceHandler struct {
	store  store.Store
	vault  *secrets.Vault
	logger *slog.Logger
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(st store.Store, vault *secrets.Vault, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{
		store:  st,
		vault:  vault,
		logger: logger,
	}
}

// createSourceRequest is the source registration payload.
type createSourceRequest struct {
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	Credentials json.RawMessage `json:"credentials"`
}

// Create handles POST /v1/sources.
func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}
	if req.Name == "" {
		WriteBadRequest(w, "name is required")
		return
	}
	kind := models.SourceKind(req.Kind)
	if !kind.Valid() {
		WriteBadRequest(w, "unknown source kind")
		return
	}
	if len(req.Credentials) == 0 {
		WriteBadRequest(w, "credentials are required")
		return
	}
	if h.vault == nil || !h.vault.CanEncrypt() {
		WriteInternalError(w, "Credential encryption is not configured")
		return
	}

	encrypted, err := h.vault.Encrypt(r.Context(), req.Credentials)
	if err != nil {
		h.logger.Error("failed to encrypt credentials", "error", err)
		WriteInternalError(w, "Failed to store credentials")
		return
	}

	source := &models.DataSource{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Kind:        kind,
		Credentials: encrypted,
	}

	if err := h.store.Sources().Create(r.Context(), source); err != nil {
		if errors.Is(err, postgres.ErrDuplicateName) {
			WriteConflict(w, "A source with this name already exists")
			return
		}
		h.logger.Error("failed to create source", "error", err)
		WriteInternalError(w, "Failed to create source")
		return
	}

	WriteJSON(w, http.StatusCreated, source)
}

// List handles GET /v1/sources.
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.Sources().List(r.Context())
	if err != nil {
		h.logger.Error("failed to list sources", "error", err)
		WriteInternalError(w, "Failed to list sources")
		return
	}
	if sources == nil {
		sources = []*models.DataSource{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// Delete handles DELETE /v1/sources/{sourceID}.
func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if sourceID == "" {
		WriteBadRequest(w, "Source ID is required")
		return
	}

	if err := h.store.Sources().Delete(r.Context(), sourceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Source not found")
			return
		}
		h.logger.Error("failed to delete source", "error", err, "source_id", sourceID)
		WriteInternalError(w, "Failed to delete source")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

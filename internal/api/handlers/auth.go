// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flowdeck/console/internal/auth"
	"github.com/flowdeck/console/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store       store.Store
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st store.Store, authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:       st,
		authService: authSvc,
		logger:      logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password are required")
		return
	}
	if len(req.Password) < 8 {
		WriteBadRequest(w, "password must be at least 8 characters")
		return
	}

	ctx := r.Context()

	existing, _ := h.store.Users().GetByEmail(ctx, req.Email)
	if existing != nil {
		WriteConflict(w, "Email already registered")
		return
	}

	user, err := h.store.Users().Create(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.Error("failed to create user", "error", err)
		WriteInternalError(w, "Failed to create user")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "Failed to generate token")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON payload")
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password are required")
		return
	}

	user, err := h.store.Users().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			WriteUnauthorized(w, "Invalid credentials")
			return
		}
		h.logger.Error("authentication failed", "error", err)
		WriteInternalError(w, "Authentication failed")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "Failed to generate token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token,
	})
}

// Validate handles GET /v1/auth/validate - confirms the presented token.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		WriteUnauthorized(w, "Missing authentication")
		return
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		WriteUnauthorized(w, "Invalid token")
		return
	}

	// A token outlives its user when the account is removed.
	if _, err := h.store.Users().GetByID(r.Context(), claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteUnauthorized(w, "Unknown user")
			return
		}
		h.logger.Error("failed to look up user", "error", err, "user_id", claims.UserID)
		WriteInternalError(w, "Validation failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":    claims.UserID,
		"email":      claims.Email,
		"expires_at": claims.Exp,
	})
}

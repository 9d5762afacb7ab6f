package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	pkghttp "github.com/lecternhq/lectern/pkg/http"
)

// APITokenService defines the interface for API token management
type APITokenService interface {
	CreateAPIToken(ctx context.Context, ownerID, name string, scopes []string, ttl time.Duration) (string, *models.APITokenSummary, error)
	ListAPITokens(ctx context.Context, ownerID string) ([]*models.APITokenSummary, error)
	RevokeAPIToken(ctx context.Context, ownerID, tokenID string) error
}

// APITokenHandler handles API token management requests
type APITokenHandler struct {
	service APITokenService
}

// NewAPITokenHandler creates a new APITokenHandler
func NewAPITokenHandler(service APITokenService) *APITokenHandler {
	return &APITokenHandler{service: service}
}

// CreateAPITokenRequest represents the request body for creating an API token
type CreateAPITokenRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=100"`
	Scopes    []string `json:"scopes,omitempty" validate:"omitempty,dive,min=1"`
	ExpiresIn string   `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
}

// CreateAPITokenResponse carries the one-time plaintext alongside the summary
type CreateAPITokenResponse struct {
	Token   string                  `json:"token"` // shown once, never retrievable again
	Details *models.APITokenSummary `json:"details"`
}

// Create issues a new API token for the authenticated user
func (h *APITokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateAPITokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var ttl time.Duration
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || parsed <= 0 {
			pkghttp.WriteBadRequest(w, "expires_in must be a positive duration")
			return
		}
		ttl = parsed
	}

	plaintext, summary, err := h.service.CreateAPIToken(r.Context(), principal.UserID, req.Name, req.Scopes, ttl)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			pkghttp.WriteBadRequest(w, vErr.Error())
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, CreateAPITokenResponse{Token: plaintext, Details: summary})
}

// List returns the authenticated user's API tokens
func (h *APITokenHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	summaries, err := h.service.ListAPITokens(r.Context(), principal.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": summaries})
}

// Revoke revokes one of the authenticated user's API tokens
func (h *APITokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	tokenID := chi.URLParam(r, "id")
	if tokenID == "" {
		pkghttp.WriteBadRequest(w, "token id is required")
		return
	}

	if err := h.service.RevokeAPIToken(r.Context(), principal.UserID, tokenID); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Token not found")
		case errors.Is(err, models.ErrInvalidToken):
			pkghttp.WriteConflict(w, "Token is already revoked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

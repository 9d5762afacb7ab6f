package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	"github.com/lecternhq/lectern/internal/services"
	pkghttp "github.com/lecternhq/lectern/pkg/http"
)

// AccountAdminService defines the interface for admin account controls
type AccountAdminService interface {
	Unlock(ctx context.Context, adminID, userID string) error
	Suspend(ctx context.Context, adminID, userID string) error
	Reinstate(ctx context.Context, adminID, userID string) error
	List(ctx context.Context, limit, offset int) ([]*models.UserSummary, error)
	LockoutState(ctx context.Context, userID string) (*services.LockoutStatus, error)
}

// AdminHandler handles administrative account requests
type AdminHandler struct {
	service AccountAdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service AccountAdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// UnlockUser clears a user's lockout state
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.service.Unlock(r.Context(), principal.UserID, userID); err != nil {
		writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SuspendUser suspends a user account
func (h *AdminHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.service.Suspend(r.Context(), principal.UserID, userID); err != nil {
		writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReinstateUser returns a suspended account to active
func (h *AdminHandler) ReinstateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	userID := chi.URLParam(r, "id")
	if err := h.service.Reinstate(r.Context(), principal.UserID, userID); err != nil {
		writeAdminError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUsers returns a page of user summaries
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeAdminError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// GetLockoutState returns a user's current lockout view
func (h *AdminHandler) GetLockoutState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	status, err := h.service.LockoutState(r.Context(), userID)
	if err != nil {
		writeAdminError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Operation not permitted")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid account state for this operation")
	case errors.Is(err, models.ErrStorageUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

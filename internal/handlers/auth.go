package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	"github.com/lecternhq/lectern/internal/services"
	pkghttp "github.com/lecternhq/lectern/pkg/http"
)

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Signup(ctx context.Context, input services.SignupInput) (*models.UserSummary, error)
	Login(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, principal *auth.Principal) error
	VerifyEmail(ctx context.Context, plaintext string) error
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, plaintext, newPassword, confirmPassword string) error
	ChangePassword(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, confirmPassword string) error
	IssueMFAChallenge(ctx context.Context, principal *auth.Principal) (string, time.Time, error)
	VerifyMFAChallenge(ctx context.Context, principal *auth.Principal, code string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// SignupRequest represents the request body for registration
type SignupRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	Username        *string `json:"username,omitempty" validate:"omitempty,min=3,max=30"`
	Password        string  `json:"password" validate:"required"`
	ConfirmPassword string  `json:"confirm_password" validate:"required"`
	FirstName       string  `json:"first_name" validate:"required,min=1,max=100"`
	LastName        string  `json:"last_name" validate:"required,min=1,max=100"`
	Role            string  `json:"role,omitempty" validate:"omitempty,oneof=student instructor"`
	AcceptedTerms   bool    `json:"accepted_terms"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents the request body for logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest represents the request body for resending verification
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetRequest represents the request body for requesting a reset
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest represents the request body for confirming a reset
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// MFAVerifyRequest represents the request body for verifying an MFA code
type MFAVerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// MFAChallengeResponse is returned when an MFA challenge is issued
type MFAChallengeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signup handles user registration
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	summary, err := h.service.Signup(r.Context(), services.SignupInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Role:            req.Role,
		AcceptedTerms:   req.AcceptedTerms,
	})
	if err != nil {
		var vErr *models.ValidationError
		switch {
		case errors.As(err, &vErr):
			pkghttp.WriteBadRequest(w, vErr.Error())
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email or username already exists")
		case errors.Is(err, models.ErrStorageUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		var lockedErr *models.AccountLockedError
		switch {
		case errors.As(err, &lockedErr):
			w.Header().Set("Retry-After", lockedErr.LockedUntil.UTC().Format(http.TimeFormat))
			pkghttp.WriteLocked(w, "Account temporarily locked due to failed login attempts")
		case errors.Is(err, models.ErrInvalidCredentials),
			errors.Is(err, models.ErrAccountDisabled):
			// Identical response for bad credentials and disabled accounts
			// to prevent account enumeration.
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		case errors.Is(err, models.ErrStorageUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Refresh handles access token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidToken):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		case errors.Is(err, models.ErrStorageUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout revokes the presented refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteUnauthorized(w, "Invalid token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every refresh and API token for the authenticated user
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.LogoutAll(r.Context(), principal); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail consumes an email verification token
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteBadRequest(w, "Invalid or expired verification token")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// ResendVerification issues a fresh verification token
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Always accepted, registered or not.
	_ = h.service.ResendVerification(r.Context(), req.Email)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the email is registered and unverified, a new verification email has been sent.",
	})
}

// RequestPasswordReset starts the password reset flow
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Always accepted, registered or not.
	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the email is registered, a password reset email has been sent.",
	})
}

// ConfirmPasswordReset completes the password reset flow
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		var vErr *models.ValidationError
		switch {
		case errors.As(err, &vErr):
			pkghttp.WriteBadRequest(w, vErr.Error())
		case errors.Is(err, models.ErrInvalidToken):
			pkghttp.WriteBadRequest(w, "Invalid or expired reset token")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// ChangePassword changes the authenticated user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), principal, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		var vErr *models.ValidationError
		switch {
		case errors.As(err, &vErr):
			pkghttp.WriteBadRequest(w, vErr.Error())
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// MFAChallenge issues a new MFA code for the authenticated user
func (h *AuthHandler) MFAChallenge(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	code, expiresAt, err := h.service.IssueMFAChallenge(r.Context(), principal)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, MFAChallengeResponse{Code: code, ExpiresAt: expiresAt})
}

// MFAVerify consumes the authenticated user's MFA code
func (h *AuthHandler) MFAVerify(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.VerifyMFAChallenge(r.Context(), principal, req.Code); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteUnauthorized(w, "Invalid or expired code")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Code verified"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

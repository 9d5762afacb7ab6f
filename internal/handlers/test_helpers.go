package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	"github.com/lecternhq/lectern/internal/services"
	"github.com/stretchr/testify/require"
)

// MockAuthService implements AuthService for testing
type MockAuthService struct {
	SignupFunc               func(ctx context.Context, input services.SignupInput) (*models.UserSummary, error)
	LoginFunc                func(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	RefreshFunc              func(ctx context.Context, refreshToken string) (*services.LoginResult, error)
	LogoutFunc               func(ctx context.Context, refreshToken string) error
	LogoutAllFunc            func(ctx context.Context, principal *auth.Principal) error
	VerifyEmailFunc          func(ctx context.Context, plaintext string) error
	ResendVerificationFunc   func(ctx context.Context, email string) error
	RequestPasswordResetFunc func(ctx context.Context, email string) error
	ConfirmPasswordResetFunc func(ctx context.Context, plaintext, newPassword, confirmPassword string) error
	ChangePasswordFunc       func(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, confirmPassword string) error
	IssueMFAChallengeFunc    func(ctx context.Context, principal *auth.Principal) (string, time.Time, error)
	VerifyMFAChallengeFunc   func(ctx context.Context, principal *auth.Principal, code string) error
}

func (m *MockAuthService) Signup(ctx context.Context, input services.SignupInput) (*models.UserSummary, error) {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, input)
	}
	return &models.UserSummary{ID: "user-1", Email: input.Email, Status: models.StatusPendingVerification}, nil
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.LoginResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrInvalidToken
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, refreshToken)
	}
	return nil
}

func (m *MockAuthService) LogoutAll(ctx context.Context, principal *auth.Principal) error {
	if m.LogoutAllFunc != nil {
		return m.LogoutAllFunc(ctx, principal)
	}
	return nil
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, plaintext string) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, plaintext)
	}
	return nil
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ConfirmPasswordReset(ctx context.Context, plaintext, newPassword, confirmPassword string) error {
	if m.ConfirmPasswordResetFunc != nil {
		return m.ConfirmPasswordResetFunc(ctx, plaintext, newPassword, confirmPassword)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, confirmPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, principal, currentPassword, newPassword, confirmPassword)
	}
	return nil
}

func (m *MockAuthService) IssueMFAChallenge(ctx context.Context, principal *auth.Principal) (string, time.Time, error) {
	if m.IssueMFAChallengeFunc != nil {
		return m.IssueMFAChallengeFunc(ctx, principal)
	}
	return "123456", time.Now().Add(5 * time.Minute), nil
}

func (m *MockAuthService) VerifyMFAChallenge(ctx context.Context, principal *auth.Principal, code string) error {
	if m.VerifyMFAChallengeFunc != nil {
		return m.VerifyMFAChallengeFunc(ctx, principal, code)
	}
	return nil
}

// MockAPITokenService implements APITokenService for testing
type MockAPITokenService struct {
	CreateAPITokenFunc func(ctx context.Context, ownerID, name string, scopes []string, ttl time.Duration) (string, *models.APITokenSummary, error)
	ListAPITokensFunc  func(ctx context.Context, ownerID string) ([]*models.APITokenSummary, error)
	RevokeAPITokenFunc func(ctx context.Context, ownerID, tokenID string) error
}

func (m *MockAPITokenService) CreateAPIToken(ctx context.Context, ownerID, name string, scopes []string, ttl time.Duration) (string, *models.APITokenSummary, error) {
	if m.CreateAPITokenFunc != nil {
		return m.CreateAPITokenFunc(ctx, ownerID, name, scopes, ttl)
	}
	return "lct_plaintext", &models.APITokenSummary{ID: "tok-1", Name: name, Scopes: scopes}, nil
}

func (m *MockAPITokenService) ListAPITokens(ctx context.Context, ownerID string) ([]*models.APITokenSummary, error) {
	if m.ListAPITokensFunc != nil {
		return m.ListAPITokensFunc(ctx, ownerID)
	}
	return nil, nil
}

func (m *MockAPITokenService) RevokeAPIToken(ctx context.Context, ownerID, tokenID string) error {
	if m.RevokeAPITokenFunc != nil {
		return m.RevokeAPITokenFunc(ctx, ownerID, tokenID)
	}
	return nil
}

// MockAccountAdminService implements AccountAdminService for testing
type MockAccountAdminService struct {
	UnlockFunc       func(ctx context.Context, adminID, userID string) error
	SuspendFunc      func(ctx context.Context, adminID, userID string) error
	ReinstateFunc    func(ctx context.Context, adminID, userID string) error
	ListFunc         func(ctx context.Context, limit, offset int) ([]*models.UserSummary, error)
	LockoutStateFunc func(ctx context.Context, userID string) (*services.LockoutStatus, error)
}

func (m *MockAccountAdminService) Unlock(ctx context.Context, adminID, userID string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, adminID, userID)
	}
	return nil
}

func (m *MockAccountAdminService) Suspend(ctx context.Context, adminID, userID string) error {
	if m.SuspendFunc != nil {
		return m.SuspendFunc(ctx, adminID, userID)
	}
	return nil
}

func (m *MockAccountAdminService) Reinstate(ctx context.Context, adminID, userID string) error {
	if m.ReinstateFunc != nil {
		return m.ReinstateFunc(ctx, adminID, userID)
	}
	return nil
}

func (m *MockAccountAdminService) List(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *MockAccountAdminService) LockoutState(ctx context.Context, userID string) (*services.LockoutStatus, error) {
	if m.LockoutStateFunc != nil {
		return m.LockoutStateFunc(ctx, userID)
	}
	return &services.LockoutStatus{}, nil
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asPrincipal(req *http.Request, principal *auth.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), principal))
}

func testPrincipal() *auth.Principal {
	return &auth.Principal{UserID: "user-1", Email: "maria@example.edu", Role: models.RoleStudent}
}

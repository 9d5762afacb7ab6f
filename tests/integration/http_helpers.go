package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/database"
	"github.com/lecternhq/lectern/internal/handlers"
	middlewareCustom "github.com/lecternhq/lectern/internal/middleware"
	"github.com/lecternhq/lectern/internal/routes"
	"github.com/lecternhq/lectern/internal/services"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To      string
	Subject string
	Token   string
}

// MockMailer captures sent emails for test assertions
type MockMailer struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

// SendVerificationEmail records the email
func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.record(email, "Verify your Lectern email", token)
	return nil
}

// SendPasswordResetEmail records the email
func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.record(email, "Reset your Lectern password", token)
	return nil
}

func (m *MockMailer) record(email, subject, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, SentEmail{
		To:      email,
		Subject: subject,
		Token:   token,
	})
}

// GetLastEmail returns the most recent email sent
func (m *MockMailer) GetLastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentEmails) == 0 {
		return nil
	}
	return &m.SentEmails[len(m.SentEmails)-1]
}

// Reset clears captured emails
func (m *MockMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Mailer *MockMailer

	TokenManager *auth.AccessTokenManager
	Tokens       *services.TokenService
	logger       *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database + mocked email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	userRepo, tokenRepo := InitializeRepositories(db)

	mockMail := &MockMailer{}

	auditLogger := pkglogger.NewAuditLogger(logger)

	tokenService := services.NewTokenService(tokenRepo, logger, auditLogger)
	tokenManager := auth.NewAccessTokenManager("test-secret-32-characters-long-for-testing", 15*time.Minute)

	// No artificial login delay in tests
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	authService := services.NewAuthService(
		userRepo,
		db,
		tokenService,
		tokenManager,
		30*24*time.Hour,
		services.DefaultLockoutPolicy(),
		timingDelay,
		mockMail,
		logger,
		auditLogger,
	)
	accountService := services.NewAccountService(userRepo, tokenService, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(authService)
	tokenHandler := handlers.NewAPITokenHandler(tokenService)
	adminHandler := handlers.NewAdminHandler(accountService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Generous rate limit so tests can hammer the auth endpoints
	routes.RegisterRoutes(r, authHandler, tokenHandler, adminHandler, tokenManager, userRepo,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000})

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		Mailer:       mockMail,
		TokenManager: tokenManager,
		Tokens:       tokenService,
		logger:       logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractTokensFromResponse extracts access/refresh tokens from auth response
func ExtractTokensFromResponse(resp *http.Response) (accessToken, refreshToken string, err error) {
	defer resp.Body.Close()

	var authResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", fmt.Errorf("failed to parse response: %w", err)
	}

	if access, ok := authResp["access_token"].(string); ok {
		accessToken = access
	}
	if refresh, ok := authResp["refresh_token"].(string); ok {
		refreshToken = refresh
	}

	return
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}

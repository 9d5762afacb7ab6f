package integration

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecternhq/lectern/internal/models"
)

var (
	testDB     *TestDB
	testServer *TestServer
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		log.Fatalf("failed to set up test database: %v", err)
	}
	testDB = db
	testServer = NewTestServer(db.DB)

	code := m.Run()

	testServer.Close()
	if err := db.Teardown(ctx); err != nil {
		log.Printf("teardown failed: %v", err)
	}
	os.Exit(code)
}

func resetState(t *testing.T) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	testServer.Mailer.Reset()
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	resetState(t)

	email, password := TestUser("signup")

	resp, err := testServer.Request(http.MethodPost, "/auth/signup", map[string]interface{}{
		"email":            email,
		"password":         password,
		"confirm_password": password,
		"first_name":       "Maria",
		"last_name":        "Santos",
		"accepted_terms":   true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, ParseJSONResponse(resp, &created))
	assert.Equal(t, email, created["email"])
	assert.Equal(t, models.StatusPendingVerification, created["status"])

	// A verification token was delivered out of band
	sent := testServer.Mailer.GetLastEmail()
	require.NotNil(t, sent)
	assert.Equal(t, email, sent.To)
	require.NotEmpty(t, sent.Token)

	resp, err = testServer.Request(http.MethodPost, "/auth/verify-email", map[string]interface{}{
		"token": sent.Token,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Verified account logs in and receives a token pair
	resp, err = testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login map[string]interface{}
	require.NoError(t, ParseJSONResponse(resp, &login))
	assert.NotEmpty(t, login["access_token"])
	assert.NotEmpty(t, login["refresh_token"])

	user, ok := login["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, models.StatusActive, user["status"])
	assert.Equal(t, true, user["email_verified"])
}

func TestSignupDuplicateEmail(t *testing.T) {
	resetState(t)

	email, password := TestUser("dup")
	_, err := SeedUser(context.Background(), testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	resp, err := testServer.Request(http.MethodPost, "/auth/signup", map[string]interface{}{
		"email":            email,
		"password":         password,
		"confirm_password": password,
		"first_name":       "Maria",
		"last_name":        "Santos",
		"accepted_terms":   true,
	}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	resetState(t)

	email, password := TestUser("wrongpw")
	_, err := SeedUser(context.Background(), testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   "not-the-password",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	msg, err := GetErrorMessage(resp)
	require.NoError(t, err)
	assert.Equal(t, "Authentication failed", msg)
}

func TestLoginLockoutAndAdminUnlock(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	email, password := TestUser("lockout")
	victim, err := SeedUser(ctx, testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	// Four failures leave the account open
	for i := 0; i < 4; i++ {
		resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
			"identifier": email,
			"password":   "wrong-password",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	// The fifth failure locks it
	resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   "wrong-password",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	resp.Body.Close()

	// Correct password is rejected while locked
	resp, err = testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	resp.Body.Close()

	// An admin clears the lockout
	adminEmail, adminPassword := TestUser("admin")
	_, err = SeedUser(ctx, testDB.Pool, adminEmail, adminPassword, models.RoleAdmin)
	require.NoError(t, err)

	resp, err = testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": adminEmail,
		"password":   adminPassword,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	adminAccess, _, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)

	resp, err = testServer.RequestWithAuth(http.MethodPost, "/admin/users/"+victim.ID+"/unlock", adminAccess, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Unlocked account logs in again
	resp, err = testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRefreshAndLogout(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	email, password := TestUser("refresh")
	_, err := SeedUser(ctx, testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, refreshToken, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)
	require.NotEmpty(t, refreshToken)

	// Refresh mints a new access token and keeps the same refresh token
	resp, err = testServer.Request(http.MethodPost, "/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newAccess, newRefresh, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.Equal(t, refreshToken, newRefresh)

	// Logout consumes the refresh token
	resp, err = testServer.Request(http.MethodPost, "/auth/logout", map[string]interface{}{
		"refresh_token": refreshToken,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = testServer.Request(http.MethodPost, "/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestPasswordResetFlow(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	email, password := TestUser("reset")
	_, err := SeedUser(ctx, testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	// Establish a session that the reset should invalidate
	resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, refreshToken, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)

	resp, err = testServer.Request(http.MethodPost, "/auth/password-reset", map[string]interface{}{
		"email": email,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	sent := testServer.Mailer.GetLastEmail()
	require.NotNil(t, sent)
	require.NotEmpty(t, sent.Token)

	newPassword := "BrandNewPass456"
	resp, err = testServer.Request(http.MethodPost, "/auth/password-reset/confirm", map[string]interface{}{
		"token":            sent.Token,
		"new_password":     newPassword,
		"confirm_password": newPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Old password no longer works
	resp, err = testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Pre-reset refresh token is dead
	resp, err = testServer.Request(http.MethodPost, "/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// New password works
	resp, err = testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   newPassword,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	resetState(t)

	// Same response for unknown accounts, and nothing is sent
	resp, err := testServer.Request(http.MethodPost, "/auth/password-reset", map[string]interface{}{
		"email": "nobody@example.edu",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	assert.Nil(t, testServer.Mailer.GetLastEmail())
}

func TestExpiredVerificationToken(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	email, password := TestUser("expired")
	user, err := SeedUser(ctx, testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	plaintext, err := SeedExpiredToken(ctx, testDB.Pool, user.ID, models.TokenTypeEmailVerification)
	require.NoError(t, err)

	resp, err := testServer.Request(http.MethodPost, "/auth/verify-email", map[string]interface{}{
		"token": plaintext,
	}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPITokenLifecycle(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	email, password := TestUser("apitoken")
	_, err := SeedUser(ctx, testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]interface{}{
		"identifier": email,
		"password":   password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access, _, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)

	resp, err = testServer.RequestWithAuth(http.MethodPost, "/tokens", access, map[string]interface{}{
		"name":       "grading-script",
		"scopes":     []string{"courses:read"},
		"expires_in": "720h",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	require.NoError(t, ParseJSONResponse(resp, &created))
	plaintext, _ := created["token"].(string)
	require.NotEmpty(t, plaintext)
	details, ok := created["details"].(map[string]interface{})
	require.True(t, ok)
	tokenID, _ := details["id"].(string)
	require.NotEmpty(t, tokenID)

	// Listing shows the token without the secret
	resp, err = testServer.RequestWithAuth(http.MethodGet, "/tokens", access, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listBody map[string][]map[string]interface{}
	require.NoError(t, ParseJSONResponse(resp, &listBody))
	require.Len(t, listBody["tokens"], 1)
	assert.Equal(t, "grading-script", listBody["tokens"][0]["name"])

	// The plaintext validates until revoked
	token, err := testServer.Tokens.Validate(ctx, plaintext, models.TokenTypeAPI)
	require.NoError(t, err)
	assert.Equal(t, tokenID, token.ID)

	resp, err = testServer.RequestWithAuth(http.MethodDelete, "/tokens/"+tokenID, access, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	_, err = testServer.Tokens.Validate(ctx, plaintext, models.TokenTypeAPI)
	assert.Error(t, err)
}

func TestSweepRemovesExpiredTokens(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	email, password := TestUser("sweep")
	user, err := SeedUser(ctx, testDB.Pool, email, password, models.RoleStudent)
	require.NoError(t, err)

	_, err = SeedExpiredToken(ctx, testDB.Pool, user.ID, models.TokenTypePasswordReset)
	require.NoError(t, err)
	live, err := SeedToken(ctx, testDB.Pool, user.ID, models.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	deleted, err := testServer.Tokens.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// The unexpired token survives the sweep
	_, err = testServer.Tokens.Validate(ctx, live, models.TokenTypeRefresh)
	assert.NoError(t, err)
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Abcdef12"

func testPasswordHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(users *MockUserRepository, tokens *MockTokenLifecycle, mailer *MockMailer) *AuthService {
	return NewAuthService(
		users,
		&MockTxRunner{},
		tokens,
		auth.NewAccessTokenManager("test-secret-key-at-least-32-chars!!", 15*time.Minute),
		30*24*time.Hour,
		DefaultLockoutPolicy(),
		auth.NewTimingDelay(auth.TimingConfig{}),
		mailer,
		newTestLogger(),
		newTestAuditLogger(),
	)
}

func activeUser(t *testing.T) *models.User {
	return &models.User{
		ID:            "user-1",
		Email:         "maria@example.edu",
		PasswordHash:  testPasswordHash(t),
		FirstName:     "Maria",
		LastName:      "Garza",
		Role:          models.RoleStudent,
		Status:        models.StatusActive,
		EmailVerified: true,
	}
}

func TestAuthService_Signup(t *testing.T) {
	ctx := context.Background()

	validInput := func() SignupInput {
		return SignupInput{
			Email:           "new@example.edu",
			Password:        testPassword,
			ConfirmPassword: testPassword,
			FirstName:       "New",
			LastName:        "Student",
			AcceptedTerms:   true,
		}
	}

	t.Run("success creates pending account and sends verification", func(t *testing.T) {
		var created *models.User
		users := &MockUserRepository{
			CreateFunc: func(_ context.Context, user *models.User) (*models.User, error) {
				user.ID = "user-new"
				created = user
				return user, nil
			},
		}
		var verificationSent bool
		mailer := &MockMailer{
			SendVerificationEmailFunc: func(_ context.Context, email, token string, _ time.Time) error {
				verificationSent = true
				assert.Equal(t, "new@example.edu", email)
				assert.NotEmpty(t, token)
				return nil
			},
		}
		var issuedType models.TokenType
		tokens := &MockTokenLifecycle{
			IssueFunc: func(_ context.Context, ownerID string, tokenType models.TokenType, _ time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error) {
				issuedType = tokenType
				return "verify-token", &models.AuthToken{ID: "tok-1", UserID: ownerID, Type: tokenType, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
			},
		}
		svc := newAuthService(users, tokens, mailer)

		summary, err := svc.Signup(ctx, validInput())
		require.NoError(t, err)

		assert.Equal(t, "user-new", summary.ID)
		assert.Equal(t, models.StatusPendingVerification, summary.Status)
		assert.False(t, summary.EmailVerified)
		assert.Equal(t, models.RoleStudent, summary.Role)
		assert.Equal(t, models.TokenTypeEmailVerification, issuedType)
		assert.True(t, verificationSent)

		require.NotNil(t, created)
		assert.NotEqual(t, testPassword, created.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte(testPassword)))
	})

	t.Run("password mismatch creates nothing", func(t *testing.T) {
		createCalled := false
		users := &MockUserRepository{
			CreateFunc: func(_ context.Context, user *models.User) (*models.User, error) {
				createCalled = true
				return user, nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		input := validInput()
		input.ConfirmPassword = "Different12"
		_, err := svc.Signup(ctx, input)

		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "confirm_password", vErr.Field)
		assert.False(t, createCalled)
	})

	t.Run("terms must be accepted", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})

		input := validInput()
		input.AcceptedTerms = false
		_, err := svc.Signup(ctx, input)

		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "accepted_terms", vErr.Field)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})

		input := validInput()
		input.Password = "alllowercase1"
		input.ConfirmPassword = "alllowercase1"
		_, err := svc.Signup(ctx, input)

		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "password", vErr.Field)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		users := &MockUserRepository{
			ExistsByEmailFunc: func(_ context.Context, _ string) (bool, error) {
				return true, nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Signup(ctx, validInput())
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("self-service admin rejected", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})

		input := validInput()
		input.Role = models.RoleAdmin
		_, err := svc.Signup(ctx, input)

		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "role", vErr.Field)
	})

	t.Run("mailer failure does not fail signup", func(t *testing.T) {
		users := &MockUserRepository{
			CreateFunc: func(_ context.Context, user *models.User) (*models.User, error) {
				user.ID = "user-new"
				return user, nil
			},
		}
		mailer := &MockMailer{
			SendVerificationEmailFunc: func(_ context.Context, _, _ string, _ time.Time) error {
				return assert.AnError
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, mailer)

		_, err := svc.Signup(ctx, validInput())
		assert.NoError(t, err)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns token pair and resets counters", func(t *testing.T) {
		user := activeUser(t)
		user.FailedAttempts = 3

		var saved *models.User
		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
			SaveAuthStateFunc: func(_ context.Context, _ pgx.Tx, u *models.User) error {
				saved = u
				return nil
			},
		}
		tokens := &MockTokenLifecycle{}
		svc := newAuthService(users, tokens, &MockMailer{})

		result, err := svc.Login(ctx, "maria@example.edu", testPassword)
		require.NoError(t, err)

		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, "plaintext-token", result.RefreshToken)
		assert.Equal(t, "user-1", result.User.ID)

		require.NotNil(t, saved)
		assert.Zero(t, saved.FailedAttempts)
		assert.Nil(t, saved.LockedUntil)
		assert.NotNil(t, saved.LastLoginAt)
	})

	t.Run("refresh token carries the configured lifetime", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
		}

		var issuedTTL time.Duration
		tokens := &MockTokenLifecycle{
			IssueFunc: func(_ context.Context, _ string, tokenType models.TokenType, ttl time.Duration, _ models.TokenMetadata) (string, *models.AuthToken, error) {
				require.Equal(t, models.TokenTypeRefresh, tokenType)
				issuedTTL = ttl
				return "plaintext-token", &models.AuthToken{ID: "tok-1"}, nil
			},
		}

		svc := NewAuthService(
			users,
			&MockTxRunner{},
			tokens,
			auth.NewAccessTokenManager("test-secret-key-at-least-32-chars!!", 15*time.Minute),
			72*time.Hour,
			DefaultLockoutPolicy(),
			auth.NewTimingDelay(auth.TimingConfig{}),
			&MockMailer{},
			newTestLogger(),
			newTestAuditLogger(),
		)

		_, err := svc.Login(ctx, "maria@example.edu", testPassword)
		require.NoError(t, err)
		assert.Equal(t, 72*time.Hour, issuedTTL)
	})

	t.Run("wrong password increments and persists the counter", func(t *testing.T) {
		user := activeUser(t)
		user.FailedAttempts = 2

		var saved *models.User
		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
			SaveAuthStateFunc: func(_ context.Context, _ pgx.Tx, u *models.User) error {
				saved = u
				return nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Login(ctx, "maria@example.edu", "WrongPass1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)

		require.NotNil(t, saved, "failed attempt must be persisted")
		assert.Equal(t, 3, saved.FailedAttempts)
		assert.Nil(t, saved.LockedUntil)
	})

	t.Run("fifth consecutive failure locks the account", func(t *testing.T) {
		user := activeUser(t)
		user.FailedAttempts = 4

		var saved *models.User
		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
			SaveAuthStateFunc: func(_ context.Context, _ pgx.Tx, u *models.User) error {
				saved = u
				return nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Login(ctx, "maria@example.edu", "WrongPass1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)

		require.NotNil(t, saved)
		assert.Equal(t, 5, saved.FailedAttempts)
		require.NotNil(t, saved.LockedUntil)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), *saved.LockedUntil, 5*time.Second)
	})

	t.Run("locked account rejects the correct password", func(t *testing.T) {
		user := activeUser(t)
		user.FailedAttempts = 5
		lockedUntil := time.Now().Add(10 * time.Minute)
		user.LockedUntil = &lockedUntil

		saveCalled := false
		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
			SaveAuthStateFunc: func(_ context.Context, _ pgx.Tx, _ *models.User) error {
				saveCalled = true
				return nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Login(ctx, "maria@example.edu", testPassword)

		var lockedErr *models.AccountLockedError
		require.ErrorAs(t, err, &lockedErr)
		assert.ErrorIs(t, err, models.ErrAccountLocked)
		assert.Equal(t, lockedUntil, lockedErr.LockedUntil)
		assert.False(t, saveCalled, "locked rejection must not mutate state")
	})

	t.Run("elapsed lockout allows login again", func(t *testing.T) {
		user := activeUser(t)
		user.FailedAttempts = 5
		lockedUntil := time.Now().Add(-time.Minute)
		user.LockedUntil = &lockedUntil

		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		result, err := svc.Login(ctx, "maria@example.edu", testPassword)
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
	})

	t.Run("suspended account is disabled", func(t *testing.T) {
		user := activeUser(t)
		user.Status = models.StatusSuspended

		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Login(ctx, "maria@example.edu", testPassword)
		assert.ErrorIs(t, err, models.ErrAccountDisabled)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Login(ctx, "nobody@example.edu", testPassword)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("pending-verification account can log in", func(t *testing.T) {
		user := activeUser(t)
		user.Status = models.StatusPendingVerification
		user.EmailVerified = false

		users := &MockUserRepository{
			GetByIdentifierForUpdateFunc: func(_ context.Context, _ pgx.Tx, _ string) (*models.User, error) {
				return user, nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		result, err := svc.Login(ctx, "maria@example.edu", testPassword)
		require.NoError(t, err)
		assert.False(t, result.User.EmailVerified)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("valid refresh returns a fresh access token, same refresh token", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
		}
		tokens := &MockTokenLifecycle{
			ValidateFunc: func(_ context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error) {
				require.Equal(t, models.TokenTypeRefresh, tokenType)
				return &models.AuthToken{ID: "tok-r", UserID: "user-1", Type: tokenType, CreatedAt: time.Now()}, nil
			},
		}
		svc := newAuthService(users, tokens, &MockMailer{})

		result, err := svc.Refresh(ctx, "refresh-plaintext")
		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, "refresh-plaintext", result.RefreshToken)
	})

	t.Run("invalid refresh token", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})

		_, err := svc.Refresh(ctx, "bogus")
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})

	t.Run("refresh blocked while locked", func(t *testing.T) {
		user := activeUser(t)
		lockedUntil := time.Now().Add(10 * time.Minute)
		user.LockedUntil = &lockedUntil

		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
		}
		tokens := &MockTokenLifecycle{
			ValidateFunc: func(_ context.Context, _ string, tokenType models.TokenType) (*models.AuthToken, error) {
				return &models.AuthToken{ID: "tok-r", UserID: "user-1", Type: tokenType, CreatedAt: time.Now()}, nil
			},
		}
		svc := newAuthService(users, tokens, &MockMailer{})

		_, err := svc.Refresh(ctx, "refresh-plaintext")
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})

	t.Run("token minted before password change rejected", func(t *testing.T) {
		user := activeUser(t)
		changedAt := time.Now().Add(-time.Hour)
		user.PasswordChangedAt = &changedAt

		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
		}
		tokens := &MockTokenLifecycle{
			ValidateFunc: func(_ context.Context, _ string, tokenType models.TokenType) (*models.AuthToken, error) {
				return &models.AuthToken{ID: "tok-r", UserID: "user-1", Type: tokenType, CreatedAt: time.Now().Add(-2 * time.Hour)}, nil
			},
		}
		svc := newAuthService(users, tokens, &MockMailer{})

		_, err := svc.Refresh(ctx, "refresh-plaintext")
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the presented refresh token", func(t *testing.T) {
		var redeemedType models.TokenType
		tokens := &MockTokenLifecycle{
			RedeemFunc: func(_ context.Context, _ string, tokenType models.TokenType) (*models.AuthToken, error) {
				redeemedType = tokenType
				return &models.AuthToken{ID: "tok-r", UserID: "user-1", Type: tokenType}, nil
			},
		}
		svc := newAuthService(&MockUserRepository{}, tokens, &MockMailer{})

		require.NoError(t, svc.Logout(ctx, "refresh-plaintext"))
		assert.Equal(t, models.TokenTypeRefresh, redeemedType)
	})

	t.Run("logout all revokes refresh and api tokens", func(t *testing.T) {
		var revokedTypes []models.TokenType
		tokens := &MockTokenLifecycle{
			RevokeAllForOwnerFunc: func(_ context.Context, ownerID string, tokenType *models.TokenType) (int64, error) {
				assert.Equal(t, "user-1", ownerID)
				require.NotNil(t, tokenType)
				revokedTypes = append(revokedTypes, *tokenType)
				return 2, nil
			},
		}
		svc := newAuthService(&MockUserRepository{}, tokens, &MockMailer{})

		principal := &auth.Principal{UserID: "user-1", Email: "maria@example.edu", Role: models.RoleStudent}
		require.NoError(t, svc.LogoutAll(ctx, principal))
		assert.ElementsMatch(t, []models.TokenType{models.TokenTypeRefresh, models.TokenTypeAPI}, revokedTypes)
	})
}

func TestAuthService_VerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes pending account to active", func(t *testing.T) {
		user := activeUser(t)
		user.Status = models.StatusPendingVerification
		user.EmailVerified = false

		var updated *models.User
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
			UpdateFunc: func(_ context.Context, _ string, u *models.User) (*models.User, error) {
				updated = u
				return u, nil
			},
		}
		tokens := &MockTokenLifecycle{
			RedeemFunc: func(_ context.Context, _ string, tokenType models.TokenType) (*models.AuthToken, error) {
				require.Equal(t, models.TokenTypeEmailVerification, tokenType)
				return &models.AuthToken{ID: "tok-v", UserID: "user-1", Type: tokenType}, nil
			},
		}
		svc := newAuthService(users, tokens, &MockMailer{})

		require.NoError(t, svc.VerifyEmail(ctx, "verify-plaintext"))
		require.NotNil(t, updated)
		assert.True(t, updated.EmailVerified)
		assert.Equal(t, models.StatusActive, updated.Status)
	})

	t.Run("invalid token", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})
		err := svc.VerifyEmail(ctx, "bogus")
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})
}

func TestAuthService_PasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("request for unknown email reports success, issues nothing", func(t *testing.T) {
		issued := false
		tokens := &MockTokenLifecycle{
			IssueFunc: func(_ context.Context, ownerID string, tokenType models.TokenType, ttl time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error) {
				issued = true
				return "", nil, nil
			},
		}
		svc := newAuthService(&MockUserRepository{}, tokens, &MockMailer{})

		assert.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.edu"))
		assert.False(t, issued)
	})

	t.Run("request for known email sends reset token", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserRepository{
			GetByEmailFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
		}
		var sentToken string
		mailer := &MockMailer{
			SendPasswordResetEmailFunc: func(_ context.Context, email, token string, _ time.Time) error {
				assert.Equal(t, user.Email, email)
				sentToken = token
				return nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, mailer)

		require.NoError(t, svc.RequestPasswordReset(ctx, "maria@example.edu"))
		assert.Equal(t, "plaintext-token", sentToken)
	})

	t.Run("confirm installs new password and revokes refresh tokens", func(t *testing.T) {
		var newHash string
		users := &MockUserRepository{
			UpdatePasswordFunc: func(_ context.Context, id, passwordHash string) error {
				assert.Equal(t, "user-1", id)
				newHash = passwordHash
				return nil
			},
		}
		var revokedType *models.TokenType
		tokens := &MockTokenLifecycle{
			RedeemFunc: func(_ context.Context, _ string, tokenType models.TokenType) (*models.AuthToken, error) {
				require.Equal(t, models.TokenTypePasswordReset, tokenType)
				return &models.AuthToken{ID: "tok-p", UserID: "user-1", Type: tokenType}, nil
			},
			RevokeAllForOwnerFunc: func(_ context.Context, _ string, tokenType *models.TokenType) (int64, error) {
				revokedType = tokenType
				return 1, nil
			},
		}
		svc := newAuthService(users, tokens, &MockMailer{})

		err := svc.ConfirmPasswordReset(ctx, "reset-plaintext", "Newpass12", "Newpass12")
		require.NoError(t, err)
		assert.NotEmpty(t, newHash)
		require.NotNil(t, revokedType)
		assert.Equal(t, models.TokenTypeRefresh, *revokedType)
	})

	t.Run("confirm rejects mismatched passwords before redeeming", func(t *testing.T) {
		redeemed := false
		tokens := &MockTokenLifecycle{
			RedeemFunc: func(_ context.Context, _ string, _ models.TokenType) (*models.AuthToken, error) {
				redeemed = true
				return nil, models.ErrInvalidToken
			},
		}
		svc := newAuthService(&MockUserRepository{}, tokens, &MockMailer{})

		err := svc.ConfirmPasswordReset(ctx, "reset-plaintext", "Newpass12", "Other12x")
		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.False(t, redeemed)
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	principal := &auth.Principal{UserID: "user-1", Email: "maria@example.edu", Role: models.RoleStudent}

	t.Run("wrong current password", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, &MockMailer{})

		err := svc.ChangePassword(ctx, principal, "WrongPass1", "Newpass12", "Newpass12")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("success revokes refresh tokens", func(t *testing.T) {
		user := activeUser(t)
		updateCalled := false
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
			UpdatePasswordFunc: func(_ context.Context, _, _ string) error {
				updateCalled = true
				return nil
			},
		}
		revoked := false
		tokens := &MockTokenLifecycle{
			RevokeAllForOwnerFunc: func(_ context.Context, _ string, _ *models.TokenType) (int64, error) {
				revoked = true
				return 1, nil
			},
		}
		svc := newAuthService(users, tokens, &MockMailer{})

		require.NoError(t, svc.ChangePassword(ctx, principal, testPassword, "Newpass12", "Newpass12"))
		assert.True(t, updateCalled)
		assert.True(t, revoked)
	})
}

func TestAuthService_MFA(t *testing.T) {
	ctx := context.Background()
	principal := &auth.Principal{UserID: "user-1", Email: "maria@example.edu", Role: models.RoleStudent}

	t.Run("challenge issues an mfa code", func(t *testing.T) {
		tokens := &MockTokenLifecycle{
			IssueFunc: func(_ context.Context, ownerID string, tokenType models.TokenType, _ time.Duration, _ models.TokenMetadata) (string, *models.AuthToken, error) {
				require.Equal(t, models.TokenTypeMFA, tokenType)
				return "482913", &models.AuthToken{ID: "tok-m", UserID: ownerID, Type: tokenType, ExpiresAt: time.Now().Add(5 * time.Minute)}, nil
			},
		}
		svc := newAuthService(&MockUserRepository{}, tokens, &MockMailer{})

		code, expiresAt, err := svc.IssueMFAChallenge(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, "482913", code)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)
	})

	t.Run("verify consumes the code for the principal", func(t *testing.T) {
		var consumedOwner string
		tokens := &MockTokenLifecycle{
			ConsumeFunc: func(_ context.Context, _ string, tokenType models.TokenType, expectedOwnerID string) error {
				require.Equal(t, models.TokenTypeMFA, tokenType)
				consumedOwner = expectedOwnerID
				return nil
			},
		}
		svc := newAuthService(&MockUserRepository{}, tokens, &MockMailer{})

		require.NoError(t, svc.VerifyMFAChallenge(ctx, principal, "482913"))
		assert.Equal(t, "user-1", consumedOwner)
	})

	t.Run("invalid code", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})
		err := svc.VerifyMFAChallenge(ctx, principal, "000000")
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	})
}

func TestAuthService_ResendVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email reports success", func(t *testing.T) {
		svc := newAuthService(&MockUserRepository{}, &MockTokenLifecycle{}, &MockMailer{})
		assert.NoError(t, svc.ResendVerification(ctx, "nobody@example.edu"))
	})

	t.Run("already verified sends nothing", func(t *testing.T) {
		user := activeUser(t)
		users := &MockUserRepository{
			GetByEmailFunc: func(_ context.Context, _ string) (*models.User, error) {
				return user, nil
			},
		}
		sent := false
		mailer := &MockMailer{
			SendVerificationEmailFunc: func(_ context.Context, _, _ string, _ time.Time) error {
				sent = true
				return nil
			},
		}
		svc := newAuthService(users, &MockTokenLifecycle{}, mailer)

		assert.NoError(t, svc.ResendVerification(ctx, "maria@example.edu"))
		assert.False(t, sent)
	})
}

package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/models"
	pkgauth "github.com/lecternhq/lectern/pkg/auth"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

// UserRepository defines the interface for credential persistence operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	GetByIdentifierForUpdate(ctx context.Context, tx pgx.Tx, identifier string) (*models.User, error)
	SaveAuthState(ctx context.Context, tx pgx.Tx, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// TxRunner runs a function inside a storage transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// TokenLifecycle defines the token operations the orchestrator drives
type TokenLifecycle interface {
	Issue(ctx context.Context, ownerID string, tokenType models.TokenType, ttl time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error)
	Validate(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error)
	Consume(ctx context.Context, plaintext string, tokenType models.TokenType, expectedOwnerID string) error
	Redeem(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error)
	RevokeAllForOwner(ctx context.Context, ownerID string, tokenType *models.TokenType) (int64, error)
}

// Mailer is the notification collaborator. Delivery is outside the core;
// failures are logged, never surfaced to callers.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// SignupInput carries the fields accepted at registration.
type SignupInput struct {
	Email           string
	Username        *string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Role            string
	AcceptedTerms   bool
}

// LoginResult is returned by Login and Refresh: a signed access token, an
// opaque refresh token, and the safe credential summary.
type LoginResult struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	User         *models.UserSummary `json:"user"`
}

// AuthService orchestrates signup, login and the refresh/logout flows. It is
// the only component exposed to external callers and the only writer of the
// credential's secret and lockout fields.
type AuthService struct {
	users       UserRepository
	txs         TxRunner
	tokens      TokenLifecycle
	access      *auth.AccessTokenManager
	refreshTTL  time.Duration
	lockout     LockoutPolicy
	timing      *auth.TimingDelay
	mailer      Mailer
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. A zero refreshTTL falls back to
// the refresh token type's default lifetime.
func NewAuthService(
	users UserRepository,
	txs TxRunner,
	tokens TokenLifecycle,
	access *auth.AccessTokenManager,
	refreshTTL time.Duration,
	lockout LockoutPolicy,
	timing *auth.TimingDelay,
	mailer Mailer,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		txs:         txs,
		tokens:      tokens,
		access:      access,
		refreshTTL:  refreshTTL,
		lockout:     lockout,
		timing:      timing,
		mailer:      mailer,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Signup registers a new credential. The account starts in
// pending-verification status and an email-verification token is issued as a
// side effect. No row is created when validation fails.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.UserSummary, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" {
		return nil, models.NewValidationError("email", "this field is required")
	}
	if input.Password != input.ConfirmPassword {
		return nil, models.NewValidationError("confirm_password", "passwords do not match")
	}
	if !input.AcceptedTerms {
		return nil, models.NewValidationError("accepted_terms", "terms must be accepted")
	}
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, models.NewValidationError("password", err.Error())
	}
	if input.Role == "" {
		input.Role = models.RoleStudent
	}
	// Self-service signup never grants admin.
	if !models.ValidRole(input.Role) || input.Role == models.RoleAdmin {
		return nil, models.NewValidationError("role", "invalid role")
	}

	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, translateStoreError(err)
	}
	if exists {
		s.logger.Info("signup failed: email already registered")
		return nil, models.ErrConflict
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			input.Username = nil
		} else {
			input.Username = &username
			taken, err := s.users.ExistsByUsername(ctx, username)
			if err != nil {
				s.logger.Error("failed to check username availability", slog.Any("error", err))
				return nil, translateStoreError(err)
			}
			if taken {
				s.logger.Info("signup failed: username already registered")
				return nil, models.ErrConflict
			}
		}
	}

	hashedPassword, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hashedPassword,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         input.Role,
		Status:       models.StatusPendingVerification,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		// A concurrent signup can still win the unique constraint race.
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, translateStoreError(err)
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	s.auditLogger.LogAccountAction("user_registered", created.ID, "", nil)

	s.sendVerification(ctx, created.ID, created.Email)

	return created.Summary(), nil
}

// Login authenticates by email or username and returns a token pair. The
// failure branch of the lockout machine commits even though the operation
// itself reports an error.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	start := time.Now()

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	var user *models.User
	var loginErr error

	txErr := s.txs.WithTransaction(ctx, func(tx pgx.Tx) error {
		found, err := s.users.GetByIdentifierForUpdate(ctx, tx, identifier)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				loginErr = models.ErrInvalidCredentials
				return nil
			}
			return err
		}

		now := time.Now()

		if s.lockout.IsLocked(found, now) {
			loginErr = &models.AccountLockedError{LockedUntil: *found.LockedUntil}
			return nil
		}

		if !found.CanAuthenticate() {
			loginErr = models.ErrAccountDisabled
			return nil
		}

		if err := pkgauth.ComparePassword(found.PasswordHash, password); err != nil {
			s.lockout.OnFailure(found, now)
			if err := s.users.SaveAuthState(ctx, tx, found); err != nil {
				return err
			}
			loginErr = models.ErrInvalidCredentials
			return nil
		}

		s.lockout.OnSuccess(found, now)
		if err := s.users.SaveAuthState(ctx, tx, found); err != nil {
			return err
		}

		user = found
		return nil
	})
	if txErr != nil {
		s.logger.Error("login transaction failed", slog.Any("error", txErr))
		return nil, translateStoreError(txErr)
	}
	if loginErr != nil {
		s.timing.WaitFrom(start, false)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			FailureReason: failureReason(loginErr),
			Success:       false,
			Metadata:      map[string]string{"identifier": maskIdentifier(identifier)},
		})
		return nil, loginErr
	}

	result, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.timing.WaitFrom(start, true)
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return result, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself is reusable until its own expiry; it is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, models.ErrInvalidToken
	}

	token, err := s.tokens.Validate(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		s.logger.Info("refresh token validation failed")
		return nil, models.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidToken
		}
		s.logger.Error("failed to load user for refresh", slog.String("user_id", token.UserID), slog.Any("error", err))
		return nil, translateStoreError(err)
	}

	now := time.Now()
	if s.lockout.IsLocked(user, now) || !user.CanAuthenticate() {
		s.logger.Info("refresh blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		return nil, models.ErrInvalidToken
	}

	// Tokens minted before the last password change are no longer trusted.
	if user.PasswordChangedAt != nil && token.CreatedAt.Before(*user.PasswordChangedAt) {
		s.logger.Info("refresh blocked: token predates password change", slog.String("user_id", user.ID))
		return nil, models.ErrInvalidToken
	}

	accessToken, err := s.access.Generate(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Summary(),
	}, nil
}

// Logout revokes the presented refresh token server-side.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	token, err := s.tokens.Redeem(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return models.ErrInvalidToken
	}

	s.logger.Info("user logged out", slog.String("user_id", token.UserID))
	return nil
}

// LogoutAll revokes every outstanding refresh and API token for the principal.
func (s *AuthService) LogoutAll(ctx context.Context, principal *auth.Principal) error {
	for _, tokenType := range []models.TokenType{models.TokenTypeRefresh, models.TokenTypeAPI} {
		t := tokenType
		if _, err := s.tokens.RevokeAllForOwner(ctx, principal.UserID, &t); err != nil {
			return err
		}
	}

	s.logger.Info("user logged out from all devices", slog.String("user_id", principal.UserID))
	s.auditLogger.LogAccountAction("logout_all", principal.UserID, "", nil)
	return nil
}

// VerifyEmail consumes an email-verification token and flips the verified
// flag, promoting pending accounts to active.
func (s *AuthService) VerifyEmail(ctx context.Context, plaintext string) error {
	token, err := s.tokens.Redeem(ctx, plaintext, models.TokenTypeEmailVerification)
	if err != nil {
		return models.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		s.logger.Error("failed to load user for verification", slog.String("user_id", token.UserID), slog.Any("error", err))
		return translateStoreError(err)
	}

	user.EmailVerified = true
	if user.Status == models.StatusPendingVerification {
		user.Status = models.StatusActive
	}

	if _, err := s.users.Update(ctx, user.ID, user); err != nil {
		s.logger.Error("failed to persist verification", slog.String("user_id", user.ID), slog.Any("error", err))
		return translateStoreError(err)
	}

	s.logger.Info("email verified", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("email_verified", user.ID, "", nil)
	return nil
}

// ResendVerification issues a fresh verification token. Always reports
// success so callers cannot probe which addresses are registered.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up email for resend", slog.Any("error", err))
		}
		return nil
	}
	if user.EmailVerified {
		return nil
	}

	s.sendVerification(ctx, user.ID, user.Email)
	return nil
}

// RequestPasswordReset issues a password-reset token and hands it to the
// mailer. Always reports success (anti-enumeration).
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up email for reset", slog.Any("error", err))
		}
		return nil
	}

	plaintext, token, err := s.tokens.Issue(ctx, user.ID, models.TokenTypePasswordReset, 0, models.TokenMetadata{Email: user.Email})
	if err != nil {
		s.logger.Error("failed to issue reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, plaintext, token.ExpiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction("password_reset_requested", user.ID, "", nil)
	return nil
}

// ConfirmPasswordReset consumes a reset token, installs the new password and
// forces logout everywhere by revoking the owner's refresh tokens.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, plaintext, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return models.NewValidationError("confirm_password", "passwords do not match")
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError("password", err.Error())
	}

	token, err := s.tokens.Redeem(ctx, plaintext, models.TokenTypePasswordReset)
	if err != nil {
		return models.ErrInvalidToken
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, hashedPassword); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", token.UserID), slog.Any("error", err))
		return translateStoreError(err)
	}

	refreshType := models.TokenTypeRefresh
	if _, err := s.tokens.RevokeAllForOwner(ctx, token.UserID, &refreshType); err != nil {
		s.logger.Error("failed to revoke refresh tokens after reset",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
	}

	s.logger.Info("password reset completed", slog.String("user_id", token.UserID))
	s.auditLogger.LogPasswordChange(token.UserID, "", true)
	return nil
}

// ChangePassword verifies the current password before installing a new one.
// Outstanding refresh tokens are revoked so other sessions must log in again.
func (s *AuthService) ChangePassword(ctx context.Context, principal *auth.Principal, currentPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return models.NewValidationError("confirm_password", "passwords do not match")
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError("password", err.Error())
	}

	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return translateStoreError(err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(user.ID, "", false)
		return models.ErrInvalidCredentials
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return translateStoreError(err)
	}

	refreshType := models.TokenTypeRefresh
	if _, err := s.tokens.RevokeAllForOwner(ctx, user.ID, &refreshType); err != nil {
		s.logger.Error("failed to revoke refresh tokens after password change",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.logger.Info("password changed", slog.String("user_id", user.ID))
	s.auditLogger.LogPasswordChange(user.ID, "", true)
	return nil
}

// IssueMFAChallenge mints a short numeric code as an mfa token for the
// principal. Factor delivery is the collaborator's concern; the code is
// returned to the caller.
func (s *AuthService) IssueMFAChallenge(ctx context.Context, principal *auth.Principal) (string, time.Time, error) {
	code, token, err := s.tokens.Issue(ctx, principal.UserID, models.TokenTypeMFA, 0, models.TokenMetadata{})
	if err != nil {
		return "", time.Time{}, err
	}

	s.auditLogger.LogAccountAction("mfa_challenge_issued", principal.UserID, "", nil)
	return code, token.ExpiresAt, nil
}

// VerifyMFAChallenge consumes the principal's mfa code. A second verify with
// the same code fails.
func (s *AuthService) VerifyMFAChallenge(ctx context.Context, principal *auth.Principal, code string) error {
	if err := s.tokens.Consume(ctx, code, models.TokenTypeMFA, principal.UserID); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "mfa_failed",
			UserID:        principal.UserID,
			FailureReason: "invalid_code",
			Success:       false,
		})
		return models.ErrInvalidToken
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "mfa_verified",
		UserID:    principal.UserID,
		Success:   true,
	})
	return nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User) (*LoginResult, error) {
	accessToken, err := s.access.Generate(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, _, err := s.tokens.Issue(ctx, user.ID, models.TokenTypeRefresh, s.refreshTTL, models.TokenMetadata{})
	if err != nil {
		s.logger.Error("failed to issue refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Summary(),
	}, nil
}

func (s *AuthService) sendVerification(ctx context.Context, userID, email string) {
	plaintext, token, err := s.tokens.Issue(ctx, userID, models.TokenTypeEmailVerification, 0, models.TokenMetadata{Email: email})
	if err != nil {
		s.logger.Error("failed to issue verification token", slog.String("user_id", userID), slog.Any("error", err))
		return
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, plaintext, token.ExpiresAt); err != nil {
		s.logger.Error("failed to send verification email", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// maskIdentifier sanitizes a login identifier for audit logs. Emails are
// masked; usernames pass through unchanged.
func maskIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return pkglogger.SanitizedEmail(identifier)
	}
	return identifier
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, models.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "invalid_credentials"
	}
}

// translateStoreError keeps storage failures distinct from domain errors.
func translateStoreError(err error) error {
	if errors.Is(err, models.ErrStorageUnavailable) {
		return models.ErrStorageUnavailable
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConflict) {
		return err
	}
	return models.ErrInternalServer
}

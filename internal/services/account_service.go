package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/lecternhq/lectern/internal/models"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

// AccountRepository defines the persistence operations the admin surface needs
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Unlock(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// AccountService exposes administrative account controls: manual lock and
// unlock, suspension, and listing. All actions are attributed to the acting
// admin in the audit log.
type AccountService struct {
	users       AccountRepository
	tokens      TokenLifecycle
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService
func NewAccountService(users AccountRepository, tokens TokenLifecycle, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		users:       users,
		tokens:      tokens,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Unlock clears a credential's lockout state ahead of the automatic expiry.
func (s *AccountService) Unlock(ctx context.Context, adminID, userID string) error {
	if err := s.users.Unlock(ctx, userID); err != nil {
		s.logger.Error("failed to unlock user", slog.String("user_id", userID), slog.Any("error", err))
		return translateStoreError(err)
	}

	s.logger.Info("user unlocked", slog.String("user_id", userID), slog.String("admin_id", adminID))
	s.auditLogger.LogAccountAction("account_unlocked", userID, "", map[string]string{"admin_id": adminID})
	return nil
}

// Suspend moves the account to suspended status and revokes all outstanding
// tokens so existing sessions and API credentials stop working.
func (s *AccountService) Suspend(ctx context.Context, adminID, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return translateStoreError(err)
	}

	if user.Role == models.RoleAdmin && adminID == userID {
		return models.ErrForbidden
	}

	if err := s.users.SetStatus(ctx, userID, models.StatusSuspended); err != nil {
		s.logger.Error("failed to suspend user", slog.String("user_id", userID), slog.Any("error", err))
		return translateStoreError(err)
	}

	if _, err := s.tokens.RevokeAllForOwner(ctx, userID, nil); err != nil {
		s.logger.Error("failed to revoke tokens for suspended user",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}

	s.logger.Info("user suspended", slog.String("user_id", userID), slog.String("admin_id", adminID))
	s.auditLogger.LogAccountAction("account_suspended", userID, "", map[string]string{"admin_id": adminID})
	return nil
}

// Reinstate returns a suspended account to active and clears any lockout.
func (s *AccountService) Reinstate(ctx context.Context, adminID, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return translateStoreError(err)
	}

	if user.Status != models.StatusSuspended {
		return models.ErrBadRequest
	}

	if err := s.users.SetStatus(ctx, userID, models.StatusActive); err != nil {
		s.logger.Error("failed to reinstate user", slog.String("user_id", userID), slog.Any("error", err))
		return translateStoreError(err)
	}
	if err := s.users.Unlock(ctx, userID); err != nil {
		s.logger.Error("failed to clear lockout on reinstate", slog.String("user_id", userID), slog.Any("error", err))
		return translateStoreError(err)
	}

	s.logger.Info("user reinstated", slog.String("user_id", userID), slog.String("admin_id", adminID))
	s.auditLogger.LogAccountAction("account_reinstated", userID, "", map[string]string{"admin_id": adminID})
	return nil
}

// List returns a page of account summaries.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]*models.UserSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, translateStoreError(err)
	}

	summaries := make([]*models.UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, user.Summary())
	}

	return summaries, nil
}

// Lockout reports a credential's current lockout state.
type LockoutStatus struct {
	Locked         bool       `json:"locked"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// LockoutState returns the lockout view for one account.
func (s *AccountService) LockoutState(ctx context.Context, userID string) (*LockoutStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, translateStoreError(err)
	}

	return &LockoutStatus{
		Locked:         user.IsLocked(time.Now()),
		FailedAttempts: user.FailedAttempts,
		LockedUntil:    user.LockedUntil,
	}, nil
}

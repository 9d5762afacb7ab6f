package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lecternhq/lectern/internal/models"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

// MockUserRepository implements the user persistence interfaces for testing
type MockUserRepository struct {
	GetByIDFunc                  func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc               func(ctx context.Context, email string) (*models.User, error)
	GetByEmailOrUsernameFunc     func(ctx context.Context, identifier string) (*models.User, error)
	ExistsByEmailFunc            func(ctx context.Context, email string) (bool, error)
	ExistsByUsernameFunc         func(ctx context.Context, username string) (bool, error)
	CreateFunc                   func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc                   func(ctx context.Context, id string, user *models.User) (*models.User, error)
	GetByIdentifierForUpdateFunc func(ctx context.Context, tx pgx.Tx, identifier string) (*models.User, error)
	SaveAuthStateFunc            func(ctx context.Context, tx pgx.Tx, user *models.User) error
	UpdatePasswordFunc           func(ctx context.Context, id, passwordHash string) error
	UnlockFunc                   func(ctx context.Context, id string) error
	SetStatusFunc                func(ctx context.Context, id, status string) error
	ListFunc                     func(ctx context.Context, limit, offset int) ([]*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByEmailOrUsernameFunc != nil {
		return m.GetByEmailOrUsernameFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.ExistsByEmailFunc != nil {
		return m.ExistsByEmailFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.ExistsByUsernameFunc != nil {
		return m.ExistsByUsernameFunc(ctx, username)
	}
	return false, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return user, nil
}

func (m *MockUserRepository) GetByIdentifierForUpdate(ctx context.Context, tx pgx.Tx, identifier string) (*models.User, error) {
	if m.GetByIdentifierForUpdateFunc != nil {
		return m.GetByIdentifierForUpdateFunc(ctx, tx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) SaveAuthState(ctx context.Context, tx pgx.Tx, user *models.User) error {
	if m.SaveAuthStateFunc != nil {
		return m.SaveAuthStateFunc(ctx, tx, user)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) Unlock(ctx context.Context, id string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetStatus(ctx context.Context, id, status string) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

// MockAuthTokenRepository implements AuthTokenRepository for testing
type MockAuthTokenRepository struct {
	InsertFunc                 func(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error)
	GetValidByTypeAndOwnerFunc func(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error)
	GetAllValidByTypeFunc      func(ctx context.Context, tokenType models.TokenType) ([]*models.AuthToken, error)
	ListByTypeAndOwnerFunc     func(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error)
	MarkUsedFunc               func(ctx context.Context, id string, usedAt time.Time) error
	MarkAllUsedForOwnerFunc    func(ctx context.Context, userID string, tokenType *models.TokenType, usedAt time.Time) (int64, error)
	DeleteExpiredFunc          func(ctx context.Context, before time.Time) (int64, error)
	DeleteUsedFunc             func(ctx context.Context, olderThan time.Time) (int64, error)
}

func (m *MockAuthTokenRepository) Insert(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, token)
	}
	return token, nil
}

func (m *MockAuthTokenRepository) GetValidByTypeAndOwner(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error) {
	if m.GetValidByTypeAndOwnerFunc != nil {
		return m.GetValidByTypeAndOwnerFunc(ctx, tokenType, userID)
	}
	return nil, nil
}

func (m *MockAuthTokenRepository) GetAllValidByType(ctx context.Context, tokenType models.TokenType) ([]*models.AuthToken, error) {
	if m.GetAllValidByTypeFunc != nil {
		return m.GetAllValidByTypeFunc(ctx, tokenType)
	}
	return nil, nil
}

func (m *MockAuthTokenRepository) ListByTypeAndOwner(ctx context.Context, tokenType models.TokenType, userID string) ([]*models.AuthToken, error) {
	if m.ListByTypeAndOwnerFunc != nil {
		return m.ListByTypeAndOwnerFunc(ctx, tokenType, userID)
	}
	return nil, nil
}

func (m *MockAuthTokenRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, id, usedAt)
	}
	return nil
}

func (m *MockAuthTokenRepository) MarkAllUsedForOwner(ctx context.Context, userID string, tokenType *models.TokenType, usedAt time.Time) (int64, error) {
	if m.MarkAllUsedForOwnerFunc != nil {
		return m.MarkAllUsedForOwnerFunc(ctx, userID, tokenType, usedAt)
	}
	return 0, nil
}

func (m *MockAuthTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, before)
	}
	return 0, nil
}

func (m *MockAuthTokenRepository) DeleteUsed(ctx context.Context, olderThan time.Time) (int64, error) {
	if m.DeleteUsedFunc != nil {
		return m.DeleteUsedFunc(ctx, olderThan)
	}
	return 0, nil
}

// MockTxRunner runs transaction functions against a nil tx
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockTokenLifecycle implements TokenLifecycle for testing
type MockTokenLifecycle struct {
	IssueFunc             func(ctx context.Context, ownerID string, tokenType models.TokenType, ttl time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error)
	ValidateFunc          func(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error)
	ConsumeFunc           func(ctx context.Context, plaintext string, tokenType models.TokenType, expectedOwnerID string) error
	RedeemFunc            func(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error)
	RevokeAllForOwnerFunc func(ctx context.Context, ownerID string, tokenType *models.TokenType) (int64, error)
}

func (m *MockTokenLifecycle) Issue(ctx context.Context, ownerID string, tokenType models.TokenType, ttl time.Duration, metadata models.TokenMetadata) (string, *models.AuthToken, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, ownerID, tokenType, ttl, metadata)
	}
	return "plaintext-token", &models.AuthToken{
		ID:        "token-id",
		UserID:    ownerID,
		Type:      tokenType,
		ExpiresAt: time.Now().Add(tokenType.DefaultTTL()),
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}, nil
}

func (m *MockTokenLifecycle) Validate(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, plaintext, tokenType)
	}
	return nil, models.ErrInvalidToken
}

func (m *MockTokenLifecycle) Consume(ctx context.Context, plaintext string, tokenType models.TokenType, expectedOwnerID string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, plaintext, tokenType, expectedOwnerID)
	}
	return models.ErrInvalidToken
}

func (m *MockTokenLifecycle) Redeem(ctx context.Context, plaintext string, tokenType models.TokenType) (*models.AuthToken, error) {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, plaintext, tokenType)
	}
	return nil, models.ErrInvalidToken
}

func (m *MockTokenLifecycle) RevokeAllForOwner(ctx context.Context, ownerID string, tokenType *models.TokenType) (int64, error) {
	if m.RevokeAllForOwnerFunc != nil {
		return m.RevokeAllForOwnerFunc(ctx, ownerID, tokenType)
	}
	return 0, nil
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(newTestLogger())
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/lecternhq/lectern/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(users *MockUserRepository, tokens *MockTokenLifecycle) *AccountService {
	return NewAccountService(users, tokens, newTestLogger(), newTestAuditLogger())
}

func TestAccountService_Unlock(t *testing.T) {
	ctx := context.Background()

	var unlockedID string
	users := &MockUserRepository{
		UnlockFunc: func(_ context.Context, id string) error {
			unlockedID = id
			return nil
		},
	}
	svc := newAccountService(users, &MockTokenLifecycle{})

	require.NoError(t, svc.Unlock(ctx, "admin-1", "user-1"))
	assert.Equal(t, "user-1", unlockedID)
}

func TestAccountService_Suspend(t *testing.T) {
	ctx := context.Background()

	t.Run("suspends and revokes all tokens", func(t *testing.T) {
		var newStatus string
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return &models.User{ID: "user-1", Role: models.RoleStudent, Status: models.StatusActive}, nil
			},
			SetStatusFunc: func(_ context.Context, _, status string) error {
				newStatus = status
				return nil
			},
		}
		var revokedType *models.TokenType
		revokeCalled := false
		tokens := &MockTokenLifecycle{
			RevokeAllForOwnerFunc: func(_ context.Context, _ string, tokenType *models.TokenType) (int64, error) {
				revokeCalled = true
				revokedType = tokenType
				return 3, nil
			},
		}
		svc := newAccountService(users, tokens)

		require.NoError(t, svc.Suspend(ctx, "admin-1", "user-1"))
		assert.Equal(t, models.StatusSuspended, newStatus)
		assert.True(t, revokeCalled)
		assert.Nil(t, revokedType, "suspension revokes every token type")
	})

	t.Run("admin cannot suspend itself", func(t *testing.T) {
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return &models.User{ID: "admin-1", Role: models.RoleAdmin, Status: models.StatusActive}, nil
			},
		}
		svc := newAccountService(users, &MockTokenLifecycle{})

		err := svc.Suspend(ctx, "admin-1", "admin-1")
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestAccountService_Reinstate(t *testing.T) {
	ctx := context.Background()

	t.Run("only suspended accounts can be reinstated", func(t *testing.T) {
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return &models.User{ID: "user-1", Status: models.StatusActive}, nil
			},
		}
		svc := newAccountService(users, &MockTokenLifecycle{})

		err := svc.Reinstate(ctx, "admin-1", "user-1")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("reinstate activates and clears lockout", func(t *testing.T) {
		var newStatus string
		unlocked := false
		users := &MockUserRepository{
			GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
				return &models.User{ID: "user-1", Status: models.StatusSuspended}, nil
			},
			SetStatusFunc: func(_ context.Context, _, status string) error {
				newStatus = status
				return nil
			},
			UnlockFunc: func(_ context.Context, _ string) error {
				unlocked = true
				return nil
			},
		}
		svc := newAccountService(users, &MockTokenLifecycle{})

		require.NoError(t, svc.Reinstate(ctx, "admin-1", "user-1"))
		assert.Equal(t, models.StatusActive, newStatus)
		assert.True(t, unlocked)
	})
}

func TestAccountService_LockoutState(t *testing.T) {
	ctx := context.Background()
	lockedUntil := time.Now().Add(10 * time.Minute)

	users := &MockUserRepository{
		GetByIDFunc: func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: "user-1", FailedAttempts: 5, LockedUntil: &lockedUntil}, nil
		},
	}
	svc := newAccountService(users, &MockTokenLifecycle{})

	status, err := svc.LockoutState(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 5, status.FailedAttempts)
	require.NotNil(t, status.LockedUntil)
}

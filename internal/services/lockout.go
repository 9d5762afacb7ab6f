package services

import (
	"time"

	"github.com/lecternhq/lectern/internal/models"
)

// LockoutPolicy is the pure state machine over the credential's lockout
// fields. It never touches storage; the orchestrator persists the mutated
// fields inside the same transaction that read them.
type LockoutPolicy struct {
	Threshold int           // consecutive failures before locking
	Duration  time.Duration // length of the lockout window
}

// DefaultLockoutPolicy returns the standard policy: 5 failures, 30 minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: 5,
		Duration:  30 * time.Minute,
	}
}

// IsLocked reports whether the account is inside an active lockout window.
// An elapsed window counts as unlocked, but the failure counter keeps its
// value until a success occurs.
func (p LockoutPolicy) IsLocked(user *models.User, now time.Time) bool {
	return user.IsLocked(now)
}

// OnFailure advances the machine on a failed authentication: the counter
// increments, and reaching the threshold opens a fresh lockout window.
func (p LockoutPolicy) OnFailure(user *models.User, now time.Time) {
	user.FailedAttempts++
	if user.FailedAttempts >= p.Threshold {
		lockedUntil := now.Add(p.Duration)
		user.LockedUntil = &lockedUntil
	}
}

// OnSuccess advances the machine on a successful authentication: counters
// reset and activity timestamps are stamped. Callers must not invoke this
// while the account is locked.
func (p LockoutPolicy) OnSuccess(user *models.User, now time.Time) {
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	user.LastActivityAt = &now
}

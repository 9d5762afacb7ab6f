package models

import (
	"time"
)

// Account status values
const (
	StatusPendingVerification = "pending_verification"
	StatusActive              = "active"
	StatusSuspended           = "suspended"
	StatusInactive            = "inactive"
)

// Account roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ValidRole reports whether the role is one the platform recognizes.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// User is the authenticatable credential record: identity, password hash,
// lockout counters and activity timestamps. Rows are never hard-deleted;
// deactivation flips Status to "inactive".
type User struct {
	ID                 string
	Email              string
	Username           *string // optional, unique when set
	PasswordHash       string
	FirstName          string
	LastName           string
	Role               string // e.g., "student", "instructor", "admin"
	Status             string
	EmailVerified      bool
	MustChangePassword bool
	FailedAttempts     int        // consecutive failed logins since last success
	LockedUntil        *time.Time // temporary lockout expiration
	LastLoginAt        *time.Time
	LastActivityAt     *time.Time
	PasswordChangedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsLocked reports whether the account is inside an active lockout window.
// A non-nil LockedUntil in the future locks the account regardless of Status.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// CanAuthenticate reports whether the account status permits login at all.
// Pending-verification accounts may log in; verification gates email-dependent
// features, not authentication.
func (u *User) CanAuthenticate() bool {
	return u.Status == StatusActive || u.Status == StatusPendingVerification
}

// UserSummary is the safe projection of a User returned to callers.
// It never carries the password hash or lockout counters.
type UserSummary struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Username           *string    `json:"username,omitempty"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	EmailVerified      bool       `json:"email_verified"`
	MustChangePassword bool       `json:"must_change_password"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Summary converts a User to its safe external projection.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Role:               u.Role,
		Status:             u.Status,
		EmailVerified:      u.EmailVerified,
		MustChangePassword: u.MustChangePassword,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
	}
}

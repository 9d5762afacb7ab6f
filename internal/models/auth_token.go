package models

import (
	"time"
)

// TokenType identifies the single purpose an AuthToken may be used for.
// Validity is type-scoped: a token only validates against its own type.
type TokenType string

const (
	TokenTypeEmailVerification TokenType = "email_verification"
	TokenTypePasswordReset     TokenType = "password_reset"
	TokenTypeMFA               TokenType = "mfa"
	TokenTypeAPI               TokenType = "api"
	TokenTypeRefresh           TokenType = "refresh"
)

// Default time-to-live per token type. Callers may override at issuance.
var defaultTokenTTLs = map[TokenType]time.Duration{
	TokenTypeEmailVerification: 24 * time.Hour,
	TokenTypePasswordReset:     1 * time.Hour,
	TokenTypeMFA:               5 * time.Minute,
	TokenTypeAPI:               365 * 24 * time.Hour,
	TokenTypeRefresh:           30 * 24 * time.Hour,
}

// DefaultTTL returns the default expiry window for the token type.
func (t TokenType) DefaultTTL() time.Duration {
	if ttl, ok := defaultTokenTTLs[t]; ok {
		return ttl
	}
	return time.Hour
}

// IsKnown reports whether t is one of the supported token types.
func (t TokenType) IsKnown() bool {
	_, ok := defaultTokenTTLs[t]
	return ok
}

// SingleOutstanding reports whether at most one live token of this type may
// exist per owner. Issuing a new one invalidates the previous.
func (t TokenType) SingleOutstanding() bool {
	return t == TokenTypeEmailVerification || t == TokenTypePasswordReset
}

// TokenMetadata holds the typed optional extension fields per token type.
// Only the fields relevant to the token's type are populated.
type TokenMetadata struct {
	Email  string   // email_verification: address the token was issued for
	Name   string   // api: caller-assigned label
	Prefix string   // api: first characters of the plaintext, for display
	Scopes []string // api: granted scopes
}

// AuthToken is a single-purpose, time-bounded opaque secret tied to one user.
// Only the bcrypt hash of the plaintext is ever stored; the plaintext is
// returned once at issuance and never persisted.
type AuthToken struct {
	ID        string
	UserID    string
	Type      TokenType
	TokenHash string // never exposed
	ExpiresAt time.Time
	UsedAt    *time.Time
	Metadata  TokenMetadata
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its expiry.
func (t *AuthToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsed reports whether the token has been consumed or revoked.
func (t *AuthToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsValid reports whether the token is live: unused and unexpired.
func (t *AuthToken) IsValid(now time.Time) bool {
	return !t.IsUsed() && !t.IsExpired(now)
}

// APITokenSummary is the safe projection of an API token for listing.
type APITokenSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// APISummary converts an api-type token to its listing projection.
func (t *AuthToken) APISummary() *APITokenSummary {
	return &APITokenSummary{
		ID:        t.ID,
		Name:      t.Metadata.Name,
		Prefix:    t.Metadata.Prefix,
		Scopes:    t.Metadata.Scopes,
		ExpiresAt: t.ExpiresAt,
		RevokedAt: t.UsedAt,
		CreatedAt: t.CreatedAt,
	}
}

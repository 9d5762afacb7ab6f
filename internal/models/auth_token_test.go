package models

import (
	"testing"
	"time"
)

func TestTokenType_DefaultTTL(t *testing.T) {
	tests := []struct {
		name      string
		tokenType TokenType
		expected  time.Duration
	}{
		{name: "email verification", tokenType: TokenTypeEmailVerification, expected: 24 * time.Hour},
		{name: "password reset", tokenType: TokenTypePasswordReset, expected: 1 * time.Hour},
		{name: "mfa", tokenType: TokenTypeMFA, expected: 5 * time.Minute},
		{name: "api", tokenType: TokenTypeAPI, expected: 365 * 24 * time.Hour},
		{name: "refresh", tokenType: TokenTypeRefresh, expected: 30 * 24 * time.Hour},
		{name: "unknown falls back", tokenType: TokenType("bogus"), expected: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tokenType.DefaultTTL(); got != tt.expected {
				t.Errorf("DefaultTTL(%q) = %v, want %v", tt.tokenType, got, tt.expected)
			}
		})
	}
}

func TestTokenType_IsKnown(t *testing.T) {
	for _, known := range []TokenType{
		TokenTypeEmailVerification,
		TokenTypePasswordReset,
		TokenTypeMFA,
		TokenTypeAPI,
		TokenTypeRefresh,
	} {
		if !known.IsKnown() {
			t.Errorf("expected %q to be known", known)
		}
	}

	if TokenType("session").IsKnown() {
		t.Error("expected unknown type to be rejected")
	}
	if TokenType("").IsKnown() {
		t.Error("expected empty type to be rejected")
	}
}

func TestTokenType_SingleOutstanding(t *testing.T) {
	tests := []struct {
		tokenType TokenType
		expected  bool
	}{
		{TokenTypeEmailVerification, true},
		{TokenTypePasswordReset, true},
		{TokenTypeMFA, false},
		{TokenTypeAPI, false},
		{TokenTypeRefresh, false},
	}

	for _, tt := range tests {
		if got := tt.tokenType.SingleOutstanding(); got != tt.expected {
			t.Errorf("SingleOutstanding(%q) = %v, want %v", tt.tokenType, got, tt.expected)
		}
	}
}

func TestAuthToken_Validity(t *testing.T) {
	now := time.Now()
	used := now.Add(-time.Minute)

	tests := []struct {
		name    string
		token   AuthToken
		isValid bool
	}{
		{
			name:    "live token",
			token:   AuthToken{ExpiresAt: now.Add(time.Hour)},
			isValid: true,
		},
		{
			name:    "expired token",
			token:   AuthToken{ExpiresAt: now.Add(-time.Second)},
			isValid: false,
		},
		{
			name:    "expiry boundary is exclusive",
			token:   AuthToken{ExpiresAt: now},
			isValid: false,
		},
		{
			name:    "used token",
			token:   AuthToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used},
			isValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.IsValid(now); got != tt.isValid {
				t.Errorf("IsValid() = %v, want %v", got, tt.isValid)
			}
		})
	}
}

func TestAuthToken_APISummary(t *testing.T) {
	now := time.Now()
	token := AuthToken{
		ID:        "token-1",
		UserID:    "user-1",
		Type:      TokenTypeAPI,
		TokenHash: "$2a$10$secret-hash",
		ExpiresAt: now.Add(time.Hour),
		Metadata: TokenMetadata{
			Name:   "grading-script",
			Prefix: "lct_abcdef01",
			Scopes: []string{"courses:read"},
		},
		CreatedAt: now,
	}

	summary := token.APISummary()

	if summary.ID != "token-1" {
		t.Errorf("expected id token-1, got %q", summary.ID)
	}
	if summary.Name != "grading-script" {
		t.Errorf("expected name grading-script, got %q", summary.Name)
	}
	if summary.Prefix != "lct_abcdef01" {
		t.Errorf("expected prefix, got %q", summary.Prefix)
	}
	if summary.RevokedAt != nil {
		t.Error("expected live token to have nil RevokedAt")
	}
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lecternhq/lectern/internal/models"
)

// AccessTokenManager issues and validates short-lived signed access tokens.
// Refresh tokens are opaque database-backed secrets and are handled by the
// token lifecycle service, not here.
type AccessTokenManager struct {
	secret string
	expiry time.Duration
}

// NewAccessTokenManager creates a new AccessTokenManager
func NewAccessTokenManager(secret string, expiry time.Duration) *AccessTokenManager {
	return &AccessTokenManager{
		secret: secret,
		expiry: expiry,
	}
}

// Generate creates a signed access token for the user.
func (tm *AccessTokenManager) Generate(user *models.User) (string, error) {
	now := time.Now()
	claims := &models.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies a signed access token and returns its claims.
func (tm *AccessTokenManager) Validate(tokenString string) (*models.AccessClaims, error) {
	claims := &models.AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}

	return claims, nil
}

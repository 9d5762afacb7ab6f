package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims carried by a signed access token. Access tokens
// are short-lived, self-contained artifacts; they are never persisted.
type AccessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

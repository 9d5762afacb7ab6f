package auth

import (
	"context"
	"net/http"
)

// Principal is the authenticated caller, carried as an explicit value.
// Nothing in the core reads ambient request state; handlers extract the
// principal and pass it into service calls directly.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

// contextKey is a custom type for context keys
type contextKey string

const principalContextKey contextKey = "principal"

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the principal stored by the auth middleware.
// The second return is false when the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok
}

// GetPrincipal is a convenience for handlers.
func GetPrincipal(r *http.Request) *Principal {
	p, _ := PrincipalFromContext(r.Context())
	return p
}

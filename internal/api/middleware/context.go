package middleware

import (
	"context"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	principalContextKey contextKey = "principal"
	requestIDContextKey contextKey = "request_id"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	Token auth.Token
	User  auth.User
}

// withPrincipal stores the caller in the request context.
func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// GetPrincipal retrieves the caller from the request context.
// Returns nil if the request did not pass Require.
func GetPrincipal(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// RequestID returns the request ID assigned by the RequestID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

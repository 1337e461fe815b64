package middleware

import (
	"net/http"
	"strings"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// TokenValidator resolves bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (auth.Token, auth.User, error)
}

// AuthMiddleware provides bearer token authentication for HTTP handlers.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Require is an HTTP middleware that enforces authentication.
// Missing tokens yield MISSING_TOKEN; unknown, expired or malformed ones INVALID_TOKEN.
func (am *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present := BearerToken(r)
		if !present {
			WriteError(w, protocol.NewMissingTokenError())
			return
		}
		if token == "" {
			WriteError(w, protocol.NewInvalidTokenError())
			return
		}

		tok, user, err := am.validator.ValidateToken(token)
		if err != nil {
			WriteError(w, protocol.AsError(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), &Principal{Token: tok, User: user})))
	})
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// present is false when no Authorization header was sent; a header in any
// other format yields present with an empty token.
func BearerToken(r *http.Request) (token string, present bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(value), true
}

// ClientIP returns the client address of the request: the host part of
// RemoteAddr. Forwarding headers count only after TrustedRealIP has
// rewritten RemoteAddr for a trusted proxy.
func ClientIP(r *http.Request) string {
	return hostOnly(r.RemoteAddr)
}

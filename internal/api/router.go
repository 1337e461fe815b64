package api

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/gitlab-mirror/mirrorauth/internal/api/handlers"
	"github.com/gitlab-mirror/mirrorauth/internal/api/middleware"
	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// Authenticator is everything the router needs from the auth service.
type Authenticator interface {
	handlers.Authenticator
	middleware.TokenValidator
}

// RouterOption customizes NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	trustedProxies []netip.Prefix
}

// WithTrustedProxies lets peers inside prefixes supply the client address
// through forwarding headers. Without it the headers are ignored.
func WithTrustedProxies(prefixes []netip.Prefix) RouterOption {
	return func(o *routerOptions) { o.trustedProxies = prefixes }
}

// NewRouter builds the HTTP handler serving the API under /api.
func NewRouter(authn Authenticator, logger *logging.Logger, version string, opts ...RouterOption) http.Handler {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	authHandler := handlers.NewAuthHandler(authn, logger)
	authMiddleware := middleware.NewAuthMiddleware(authn)

	r := chi.NewRouter()

	r.Use(middleware.TrustedRealIP(o.trustedProxies))
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.BodyLimit)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, protocol.Fail(protocol.NewError(protocol.ErrCodeValidation, "no such endpoint")), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, protocol.Fail(protocol.NewError(protocol.ErrCodeValidation, "method not allowed")), http.StatusMethodNotAllowed)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			middleware.WriteOK(w, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/challenge", authHandler.HandleChallenge)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)

			r.With(authMiddleware.Require).Get("/verify", authHandler.HandleVerify)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Require)
			r.Method(http.MethodGet, "/status", handlers.NewStatusHandler(version))
		})
	})

	return r
}

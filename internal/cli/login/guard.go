package login

import (
	"context"
	"sync"

	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// DefaultEntryPoints are the request paths that make up a login. A 401 on
// them is a rejected attempt, not an expired session.
var DefaultEntryPoints = []string{"/auth/challenge", "/auth/login"}

// Guard restores persisted sessions and invalidates them on 401.
type Guard struct {
	api      API
	tokens   TokenStore
	state    *AuthState
	logger   *logging.Logger
	redirect func()

	mu          sync.RWMutex
	entryPoints map[string]bool
}

// NewGuard creates a guard. redirect is called after a session was
// invalidated by a 401 and may be nil.
func NewGuard(api API, tokens TokenStore, state *AuthState, logger *logging.Logger, redirect func()) *Guard {
	g := &Guard{
		api:      api,
		tokens:   tokens,
		state:    state,
		logger:   logger,
		redirect: redirect,
	}
	g.SetEntryPoints(DefaultEntryPoints...)
	return g
}

// SetEntryPoints replaces the paths exempt from 401 handling.
func (g *Guard) SetEntryPoints(paths ...string) {
	m := make(map[string]bool, len(paths))
	for _, p := range paths {
		m[p] = true
	}
	g.mu.Lock()
	g.entryPoints = m
	g.mu.Unlock()
}

// VerifySession checks the stored token with the server. Without a stored
// token it returns false and makes no request. Any verification failure
// removes the token, including a valid answer that names no user.
func (g *Guard) VerifySession(ctx context.Context) bool {
	token, err := g.tokens.Load()
	if err != nil {
		g.logger.Warn("failed to read session token", map[string]any{"error": err})
		g.invalidate()
		return false
	}
	if token == "" {
		g.state.deauthenticate()
		return false
	}

	g.api.SetSessionToken(token)
	resp, err := g.api.Verify(ctx)
	if err != nil || resp == nil || !resp.Valid || resp.User == nil {
		fields := map[string]any{}
		if err != nil {
			fields["code"] = protocol.AsError(err).Code
		}
		g.logger.Info("stored session is no longer valid", fields)
		g.invalidate()
		return false
	}

	g.state.authenticate(*resp.User)
	return true
}

// HandleUnauthorized reacts to a 401 on path. It returns false for login
// entry points, which are left to the Orchestrator.
func (g *Guard) HandleUnauthorized(path string) bool {
	g.mu.RLock()
	exempt := g.entryPoints[path]
	g.mu.RUnlock()
	if exempt {
		return false
	}

	g.logger.Info("session rejected by server", map[string]any{"path": path})
	g.invalidate()
	if g.redirect != nil {
		g.redirect()
	}
	return true
}

// Require returns an error unless the state is authenticated.
func (g *Guard) Require() error {
	if g.state.Snapshot().IsAuthenticated {
		return nil
	}
	return protocol.NewMissingTokenError()
}

func (g *Guard) invalidate() {
	if err := g.tokens.Delete(); err != nil {
		g.logger.Warn("failed to delete session token", map[string]any{"error": err})
	}
	g.api.SetSessionToken("")
	g.state.deauthenticate()
}

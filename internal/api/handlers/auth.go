// Package handlers provides HTTP request handlers for the mirror-authd API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gitlab-mirror/mirrorauth/internal/api/middleware"
	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// Authenticator is the server-side login service used by AuthHandler.
type Authenticator interface {
	GenerateChallenge(username, ip string) (auth.Challenge, error)
	Login(username, challengeID, clientProof, ip, userAgent string) (auth.Session, error)
	Logout(token string)
}

// AuthHandler handles the /auth endpoints.
type AuthHandler struct {
	authn  Authenticator
	logger *logging.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(authn Authenticator, logger *logging.Logger) *AuthHandler {
	return &AuthHandler{
		authn:  authn,
		logger: logger,
	}
}

// HandleChallenge handles POST /auth/challenge.
func (ah *AuthHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	c, err := ah.authn.GenerateChallenge(req.Username, middleware.ClientIP(r))
	if err != nil {
		middleware.WriteError(w, protocol.AsError(err))
		return
	}

	middleware.WriteOK(w, protocol.ChallengeResponse{
		Challenge:  c.ID,
		Salt:       c.Salt,
		Iterations: c.Iterations,
		ExpiresAt:  protocol.NewTimestamp(c.ExpiresAt),
	})
}

// HandleLogin handles POST /auth/login.
func (ah *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	sess, err := ah.authn.Login(req.Username, req.Challenge, req.ClientProof, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		middleware.WriteError(w, protocol.AsError(err))
		return
	}

	middleware.WriteOK(w, protocol.LoginResponse{
		Token:     sess.Token.Value,
		ExpiresAt: protocol.NewTimestamp(sess.Token.ExpiresAt),
		User:      userInfo(sess.User),
	})
}

// HandleLogout handles POST /auth/logout. It always succeeds; a bearer
// token, when present, is revoked.
func (ah *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token, _ := middleware.BearerToken(r); token != "" {
		ah.authn.Logout(token)
		ah.logger.Debug("user logged out", map[string]any{"request_id": middleware.RequestID(r.Context())})
	}

	middleware.WriteOK(w, struct{}{})
}

// HandleVerify handles GET /auth/verify. It must sit behind AuthMiddleware.Require.
func (ah *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		middleware.WriteError(w, protocol.NewMissingTokenError())
		return
	}

	expiresAt := protocol.NewTimestamp(p.Token.ExpiresAt)
	user := userInfo(p.User)
	middleware.WriteOK(w, protocol.VerifyResponse{
		Valid:     true,
		ExpiresAt: &expiresAt,
		User:      &user,
	})
}

func userInfo(u auth.User) protocol.UserInfo {
	return protocol.UserInfo{Username: u.Username, DisplayName: u.DisplayName}
}

// decodeJSON parses a request body into v, rejecting unknown fields and
// trailing data.
func decodeJSON(r *http.Request, v any) *protocol.ErrorResponse {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return protocol.NewValidationError("request body too large")
		}
		return protocol.NewErrorWithDetails(protocol.ErrCodeValidation, "invalid request body", err.Error())
	}
	if dec.More() {
		return protocol.NewValidationError("unexpected data after request body")
	}
	return nil
}

// Package auth implements the server side of challenge-response login:
// challenge issue, proof verification, brute-force lockout and session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
	"github.com/gitlab-mirror/mirrorauth/pkg/scram"
)

// msgBadCredentials is shared by every credential failure so responses do
// not reveal which check failed.
const msgBadCredentials = "Invalid username or password"

// Options configures an Authenticator. Zero values select the defaults.
type Options struct {
	ChallengeTTL   time.Duration
	TokenTTL       time.Duration
	BruteForce     BruteForceConfig
	ChallengeRate  float64
	ChallengeBurst int

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token Token
	User  User
}

// Authenticator ties the user store, challenges, brute-force guard and
// token manager together. All methods return *protocol.ErrorResponse errors.
type Authenticator struct {
	users      *UserStore
	challenges *ChallengeStore
	tokens     *TokenManager
	guard      *BruteForceGuard
	limiter    *RateLimiter
	logger     *logging.Logger
}

// NewAuthenticator creates an Authenticator with background cleanup running.
// Call Stop on shutdown.
func NewAuthenticator(users *UserStore, opts Options, logger *logging.Logger) *Authenticator {
	a := newAuthenticator(users, opts, logger)
	go a.challenges.cleanupLoop()
	go a.tokens.cleanupExpiredTokens()
	go a.guard.cleanupLoop()
	go a.limiter.cleanupInactiveClients()
	return a
}

func newAuthenticator(users *UserStore, opts Options, logger *logging.Logger) *Authenticator {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Authenticator{
		users:      users,
		challenges: newChallengeStore(opts.ChallengeTTL, now),
		tokens:     newTokenManager(opts.TokenTTL, now),
		guard:      newBruteForceGuard(opts.BruteForce, now),
		limiter:    newRateLimiter(opts.ChallengeRate, opts.ChallengeBurst, now),
		logger:     logger,
	}
}

// GenerateChallenge issues a challenge for username.
func (a *Authenticator) GenerateChallenge(username, ip string) (Challenge, error) {
	if username == "" {
		return Challenge{}, protocol.NewValidationError("username is required")
	}
	if ok, retryAfter := a.limiter.Allow(ip); !ok {
		a.audit("challenge_rate_limited", username, ip, "", nil)
		return Challenge{}, protocol.NewTooManyRequestsError(retryAfter)
	}

	user, err := a.users.Lookup(username)
	if err != nil {
		a.logger.Debug("challenge refused, unknown user", map[string]any{"username": username})
		return Challenge{}, protocol.NewUserNotFoundError()
	}
	if !user.Enabled() {
		a.logger.Debug("challenge refused, user disabled", map[string]any{"username": username})
		return Challenge{}, protocol.NewError(protocol.ErrCodeUserNotFound, "Account is disabled")
	}

	c := a.challenges.Issue(user.Username, user.Salt, user.Iterations)
	a.logger.Debug("challenge issued", map[string]any{"username": username, "expires_at": c.ExpiresAt})
	return c, nil
}

// Login verifies a client proof against an issued challenge and returns a
// new session on success.
//
// A locked account or IP is refused before the challenge is looked at.
// Every other failure is recorded against both the account and the IP.
func (a *Authenticator) Login(username, challengeID, clientProof, ip, userAgent string) (Session, error) {
	switch {
	case username == "":
		return Session{}, protocol.NewValidationError("username is required")
	case challengeID == "":
		return Session{}, protocol.NewValidationError("challenge is required")
	case clientProof == "":
		return Session{}, protocol.NewValidationError("clientProof is required")
	}

	if lockout := a.guard.CheckLoginAllowed(username, ip); lockout > 0 {
		failures := a.guard.FailureCount(username)
		a.logger.Warn("login blocked by brute-force protection", map[string]any{
			"username":        username,
			"ip":              ip,
			"lockout_seconds": lockout,
			"failures":        failures,
		})
		a.audit("login_rate_limited", username, ip, userAgent, nil)
		return Session{}, protocol.NewAccountLockedError(lockout, failures)
	}

	if _, err := a.challenges.Consume(challengeID, username); err != nil {
		return Session{}, a.fail(username, ip, userAgent, err.Error())
	}

	user, err := a.users.Lookup(username)
	if err != nil {
		return Session{}, a.fail(username, ip, userAgent, "unknown user")
	}
	if !user.Enabled() {
		_ = a.fail(username, ip, userAgent, "user disabled")
		return Session{}, protocol.NewAuthenticationError("Account is disabled")
	}

	valid, err := scram.VerifyClientProof(username, challengeID, user.StoredKey, clientProof)
	if err != nil && !errors.Is(err, scram.ErrInvalidProof) {
		a.logger.Error("proof verification failed", map[string]any{"username": username, "error": err})
		return Session{}, protocol.NewInternalError("proof verification failed")
	}
	if !valid {
		return Session{}, a.fail(username, ip, userAgent, "invalid proof")
	}

	a.guard.RecordSuccess(username, ip)
	tok := a.tokens.Issue(user.Username)
	a.audit("login_success", username, ip, userAgent, nil)
	a.logger.Info("login successful", map[string]any{"username": username, "ip": ip})

	return Session{Token: tok, User: user}, nil
}

// ValidateToken resolves a bearer token to its user.
func (a *Authenticator) ValidateToken(value string) (Token, User, error) {
	if value == "" {
		return Token{}, User{}, protocol.NewMissingTokenError()
	}
	tok, err := a.tokens.Validate(value)
	if err != nil {
		return Token{}, User{}, protocol.NewInvalidTokenError()
	}
	user, err := a.users.Lookup(tok.Username)
	if err != nil || !user.Enabled() {
		return Token{}, User{}, protocol.NewInvalidTokenError()
	}
	return tok, user, nil
}

// Logout revokes a token. Unknown tokens are ignored.
func (a *Authenticator) Logout(value string) {
	if a.tokens.Revoke(value) {
		a.logger.Debug("token revoked")
	}
}

// Stop stops background cleanup.
func (a *Authenticator) Stop() {
	a.challenges.Stop()
	a.tokens.Stop()
	a.guard.Stop()
	a.limiter.Stop()
}

// fail records a failed attempt and returns the generic credential error.
func (a *Authenticator) fail(username, ip, userAgent, reason string) error {
	a.guard.RecordFailure(username, ip)

	event := "login_failure"
	if a.guard.CheckLoginAllowed(username, ip) > 0 {
		event = "account_locked"
	}
	a.audit(event, username, ip, userAgent, map[string]any{"reason": reason})

	return protocol.NewAuthenticationError(msgBadCredentials)
}

func (a *Authenticator) audit(event, username, ip, userAgent string, extra map[string]any) {
	fields := map[string]any{
		"audit":    event,
		"username": username,
		"ip":       ip,
	}
	if userAgent != "" {
		fields["user_agent"] = userAgent
	}
	for k, v := range extra {
		fields[k] = v
	}

	switch event {
	case "login_success":
		a.logger.Info("audit", fields)
	default:
		a.logger.Warn("audit", fields)
	}
}

package login

import (
	"context"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/logging"
)

// Manager is the client's authentication surface: one AuthState and the
// components allowed to change it.
type Manager struct {
	state        *AuthState
	countdown    *Countdown
	orchestrator *Orchestrator
	guard        *Guard
}

type options struct {
	scheduler   Scheduler
	now         func() time.Time
	logger      *logging.Logger
	redirect    func()
	entryPoints []string
}

// Option configures a Manager.
type Option func(*options)

// WithScheduler sets the scheduler driving the lockout countdown.
func WithScheduler(s Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithClock sets the clock used to check challenge expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRedirect sets the callback run after a 401 invalidated the session.
func WithRedirect(fn func()) Option {
	return func(o *options) { o.redirect = fn }
}

// WithEntryPoints overrides DefaultEntryPoints.
func WithEntryPoints(paths ...string) Option {
	return func(o *options) { o.entryPoints = paths }
}

// New creates a Manager.
func New(api API, tokens TokenStore, opts ...Option) *Manager {
	o := options{
		scheduler: TickerScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	state := NewAuthState()
	countdown := NewCountdown(state, o.scheduler, o.logger)
	requester := NewRequester(api, o.now)
	guard := NewGuard(api, tokens, state, o.logger, o.redirect)
	if o.entryPoints != nil {
		guard.SetEntryPoints(o.entryPoints...)
	}

	return &Manager{
		state:        state,
		countdown:    countdown,
		orchestrator: NewOrchestrator(api, tokens, state, countdown, requester, o.logger),
		guard:        guard,
	}
}

// State returns the shared state for reading and observing.
func (m *Manager) State() *AuthState { return m.state }

// Snapshot is shorthand for State().Snapshot().
func (m *Manager) Snapshot() State { return m.state.Snapshot() }

// Login runs one login attempt.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	return m.orchestrator.Login(ctx, username, password)
}

// Logout ends the session. Local state is always reset.
func (m *Manager) Logout(ctx context.Context) error {
	return m.orchestrator.Logout(ctx)
}

// VerifySession restores a persisted session.
func (m *Manager) VerifySession(ctx context.Context) bool {
	return m.guard.VerifySession(ctx)
}

// HandleUnauthorized is meant to be registered as the API client's 401 hook.
func (m *Manager) HandleUnauthorized(path string) {
	m.guard.HandleUnauthorized(path)
}

// Require gates protected operations.
func (m *Manager) Require() error {
	return m.guard.Require()
}

// Close stops the lockout countdown.
func (m *Manager) Close() {
	m.countdown.Cancel()
}

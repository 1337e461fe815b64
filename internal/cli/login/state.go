package login

import (
	"sync"

	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// Phase is the position of the current login attempt.
type Phase int

// Login phases. Rejected and locked attempts return to PhaseIdle; the
// result is kept in State.Outcome.
const (
	PhaseIdle Phase = iota
	PhaseAwaitingChallenge
	PhaseComputingProof
	PhaseAwaitingServerDecision
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingChallenge:
		return "awaiting_challenge"
	case PhaseComputingProof:
		return "computing_proof"
	case PhaseAwaitingServerDecision:
		return "awaiting_server_decision"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "idle"
	}
}

// Outcome is how the most recent login attempt ended.
type Outcome int

// Login outcomes.
const (
	OutcomeNone Outcome = iota
	OutcomeAuthenticated
	OutcomeRejected
	OutcomeLocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRejected:
		return "rejected"
	case OutcomeLocked:
		return "locked"
	default:
		return "none"
	}
}

// State is a point-in-time copy of the authentication state.
type State struct {
	Phase           Phase
	Outcome         Outcome
	IsAuthenticated bool
	CurrentUser     *protocol.UserInfo
	FailureCount    int
	LockoutSeconds  int
	LastError       *protocol.ErrorResponse
}

// Locked reports whether a lockout countdown is running.
func (s State) Locked() bool {
	return s.LockoutSeconds > 0
}

// AuthState is the single owner of the client's authentication state.
// Only the Orchestrator, Countdown and Guard of the same Manager mutate it;
// everyone else reads snapshots.
type AuthState struct {
	mu        sync.RWMutex
	state     State
	observers []func(State)
}

// NewAuthState returns an unauthenticated, idle state.
func NewAuthState() *AuthState {
	return &AuthState{}
}

// Snapshot returns a copy of the current state.
func (a *AuthState) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.clone()
}

// Observe registers fn to receive a snapshot after every change.
// fn runs on the goroutine that made the change and must not block.
func (a *AuthState) Observe(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// update applies fn under the write lock and notifies observers.
// A running lockout always forces the unauthenticated state.
func (a *AuthState) update(fn func(*State)) State {
	a.mu.Lock()
	fn(&a.state)
	if a.state.LockoutSeconds < 0 {
		a.state.LockoutSeconds = 0
	}
	if a.state.LockoutSeconds > 0 {
		a.state.IsAuthenticated = false
		a.state.CurrentUser = nil
		if a.state.Phase == PhaseAuthenticated {
			a.state.Phase = PhaseIdle
		}
	}
	snap := a.state.clone()
	observers := a.observers
	a.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return snap
}

func (a *AuthState) setPhase(p Phase) {
	a.update(func(s *State) { s.Phase = p })
}

// authenticate records a confirmed session.
func (a *AuthState) authenticate(user protocol.UserInfo) {
	a.update(func(s *State) {
		s.Phase = PhaseAuthenticated
		s.Outcome = OutcomeAuthenticated
		s.IsAuthenticated = true
		s.CurrentUser = &user
		s.FailureCount = 0
		s.LockoutSeconds = 0
		s.LastError = nil
	})
}

// deauthenticate drops the session but keeps failure and lockout counters.
func (a *AuthState) deauthenticate() {
	a.update(func(s *State) {
		if s.Phase == PhaseAuthenticated {
			s.Phase = PhaseIdle
		}
		s.IsAuthenticated = false
		s.CurrentUser = nil
	})
}

// reset returns to the initial state.
func (a *AuthState) reset() {
	a.update(func(s *State) { *s = State{} })
}

func (s State) clone() State {
	out := s
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		out.CurrentUser = &u
	}
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	return out
}

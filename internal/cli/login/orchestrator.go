package login

import (
	"context"
	"fmt"

	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
	"github.com/gitlab-mirror/mirrorauth/pkg/scram"
)

// Orchestrator runs login attempts and logout.
type Orchestrator struct {
	api       API
	tokens    TokenStore
	state     *AuthState
	countdown *Countdown
	requester *Requester
	logger    *logging.Logger
}

// NewOrchestrator wires an orchestrator. All arguments are required.
func NewOrchestrator(api API, tokens TokenStore, state *AuthState, countdown *Countdown, requester *Requester, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		api:       api,
		tokens:    tokens,
		state:     state,
		countdown: countdown,
		requester: requester,
		logger:    logger,
	}
}

// Login authenticates username with password. On failure the returned
// error is a *protocol.ErrorResponse and State.LastError holds the same value.
// A running lockout does not block the attempt; the server decides.
func (o *Orchestrator) Login(ctx context.Context, username, password string) error {
	o.state.update(func(s *State) {
		s.Phase = PhaseAwaitingChallenge
		s.LastError = nil
	})

	ch, err := o.requester.Request(ctx, username)
	if err != nil {
		return o.reject(protocol.AsError(err), false)
	}

	o.state.setPhase(PhaseComputingProof)
	proof, err := scram.ComputeClientProof(username, password, ch.ID, ch.Salt, ch.Iterations)
	if err != nil {
		return o.reject(protocol.NewValidationError(fmt.Sprintf("cannot compute client proof: %v", err)), false)
	}

	o.state.setPhase(PhaseAwaitingServerDecision)
	resp, err := o.api.Login(ctx, protocol.LoginRequest{
		Username:    username,
		Challenge:   ch.ID,
		ClientProof: proof,
	})
	if err != nil {
		return o.serverRejected(protocol.AsError(err))
	}

	return o.accept(resp)
}

func (o *Orchestrator) accept(resp *protocol.LoginResponse) error {
	if err := o.tokens.Save(resp.Token); err != nil {
		return o.reject(protocol.NewInternalError(fmt.Sprintf("failed to store session token: %v", err)), false)
	}
	o.api.SetSessionToken(resp.Token)
	o.countdown.Cancel()

	user := resp.User
	o.state.authenticate(user)

	o.logger.Info("login succeeded", map[string]any{"username": user.Username})
	return nil
}

func (o *Orchestrator) serverRejected(apiErr *protocol.ErrorResponse) error {
	if apiErr.Kind() != protocol.KindLocked {
		return o.reject(apiErr, apiErr.CountsTowardLockout())
	}

	snap := o.state.update(func(s *State) {
		s.Phase = PhaseIdle
		s.Outcome = OutcomeLocked
		s.IsAuthenticated = false
		s.CurrentUser = nil
		s.LastError = apiErr
		if apiErr.FailedAttempts != nil {
			s.FailureCount = *apiErr.FailedAttempts
		}
	})
	o.countdown.Start(apiErr.RetryAfterSeconds())

	o.logger.Warn("account locked", map[string]any{
		"retry_after":     apiErr.RetryAfterSeconds(),
		"failed_attempts": snap.FailureCount,
	})
	return apiErr
}

// reject ends the attempt. countFailure is set only for rejected credentials.
func (o *Orchestrator) reject(apiErr *protocol.ErrorResponse, countFailure bool) error {
	snap := o.state.update(func(s *State) {
		s.Phase = PhaseIdle
		s.Outcome = OutcomeRejected
		s.IsAuthenticated = false
		s.CurrentUser = nil
		s.LastError = apiErr
		if countFailure {
			s.FailureCount++
		}
	})

	o.logger.Info("login rejected", map[string]any{
		"code":          apiErr.Code,
		"failure_count": snap.FailureCount,
	})
	return apiErr
}

// Logout revokes the session on the server if one is stored and always
// resets local state. Only local cleanup failures are returned.
func (o *Orchestrator) Logout(ctx context.Context) (err error) {
	defer func() {
		err = o.clearLocal()
	}()

	token, loadErr := o.tokens.Load()
	if loadErr != nil || token == "" {
		return nil
	}

	o.api.SetSessionToken(token)
	if logoutErr := o.api.Logout(ctx); logoutErr != nil {
		o.logger.Warn("server logout failed", map[string]any{"error": logoutErr})
	}
	return nil
}

func (o *Orchestrator) clearLocal() error {
	o.countdown.Cancel()
	o.api.SetSessionToken("")
	o.state.reset()

	if err := o.tokens.Delete(); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

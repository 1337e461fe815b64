// Package login drives challenge-response authentication against the mirror
// service and owns the resulting client-side session state.
//
// A Manager ties together the pieces: the Orchestrator runs one login attempt
// through its phases, the Countdown ticks down a server-imposed lockout and
// the Guard restores and invalidates persisted sessions. All of them write to
// a single AuthState; callers only ever read snapshots of it.
//
//go:generate go tool mockgen -destination=mock_api.go -package=login github.com/gitlab-mirror/mirrorauth/internal/cli/login API
package login

package login_test

import (
	"testing"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountdown() (*login.Countdown, *login.AuthState, *login.ManualScheduler) {
	state := login.NewAuthState()
	sched := login.NewManualScheduler()
	return login.NewCountdown(state, sched, logging.Discard()), state, sched
}

func TestCountdown_TicksToZero(t *testing.T) {
	c, state, sched := newCountdown()

	c.Start(3)
	assert.Equal(t, 3, state.Snapshot().LockoutSeconds)
	assert.True(t, c.Active())

	sched.Advance(time.Second)
	assert.Equal(t, 2, state.Snapshot().LockoutSeconds)

	sched.Advance(2 * time.Second)
	assert.Zero(t, state.Snapshot().LockoutSeconds)
	assert.False(t, c.Active())
	assert.Zero(t, sched.Active())

	sched.Advance(5 * time.Second)
	assert.Zero(t, state.Snapshot().LockoutSeconds, "no ticks after expiry")
}

func TestCountdown_RestartReplaces(t *testing.T) {
	c, state, sched := newCountdown()

	c.Start(10)
	sched.Advance(2 * time.Second)
	c.Start(4)

	assert.Equal(t, 1, sched.Active())
	assert.Equal(t, 4, state.Snapshot().LockoutSeconds)

	sched.Advance(time.Second)
	assert.Equal(t, 3, state.Snapshot().LockoutSeconds, "only one countdown decrements")
}

func TestCountdown_Cancel(t *testing.T) {
	c, state, sched := newCountdown()

	c.Start(5)
	sched.Advance(time.Second)
	c.Cancel()
	c.Cancel()

	sched.Advance(10 * time.Second)
	assert.Equal(t, 4, state.Snapshot().LockoutSeconds, "cancel leaves state alone")
	assert.False(t, c.Active())
}

func TestCountdown_NonPositive(t *testing.T) {
	c, state, sched := newCountdown()

	c.Start(5)
	c.Start(0)
	assert.Zero(t, state.Snapshot().LockoutSeconds)
	assert.Zero(t, sched.Active())

	c.Start(-3)
	assert.Zero(t, state.Snapshot().LockoutSeconds)
	assert.False(t, c.Active())
}

func TestCountdown_RealScheduler(t *testing.T) {
	state := login.NewAuthState()
	c := login.NewCountdown(state, login.TickerScheduler{}, logging.Discard())
	t.Cleanup(c.Cancel)

	c.Start(1)
	require.Eventually(t, func() bool {
		return state.Snapshot().LockoutSeconds == 0 && !c.Active()
	}, 3*time.Second, 20*time.Millisecond)
}

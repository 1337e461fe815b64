package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-mirror/mirrorauth/internal/auth"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/client"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/gitlab-mirror/mirrorauth/internal/cli/session"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

type e2eEnv struct {
	url    string
	client *client.Client
	slot   *session.Slot
	sched  *login.ManualScheduler
	mgr    *login.Manager
}

// newE2E wires the real CLI stack against an in-process server.
func newE2E(t *testing.T, opts auth.Options) *e2eEnv {
	t.Helper()

	srv := newTestServer(t, opts)
	store, err := session.NewStoreAt(t.TempDir())
	require.NoError(t, err)

	c := client.New(srv.URL+"/api", srv.Client())
	slot := store.Slot(srv.URL)
	sched := login.NewManualScheduler()
	mgr := login.New(c, slot, login.WithScheduler(sched))
	c.OnUnauthorized(mgr.HandleUnauthorized)
	t.Cleanup(mgr.Close)

	return &e2eEnv{url: srv.URL + "/api", client: c, slot: slot, sched: sched, mgr: mgr}
}

func TestE2E_LoginVerifyLogout(t *testing.T) {
	env := newE2E(t, auth.Options{})
	ctx := context.Background()

	require.NoError(t, env.mgr.Login(ctx, testUser, testPassword))

	snap := env.mgr.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, login.PhaseAuthenticated, snap.Phase)
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, "Administrator", snap.CurrentUser.DisplayName)

	token, err := env.slot.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	status, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, testVersion, status.Version)

	require.NoError(t, env.mgr.Logout(ctx))
	assert.False(t, env.mgr.Snapshot().IsAuthenticated)

	token, err = env.slot.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestE2E_SessionRestoredFromStore(t *testing.T) {
	env := newE2E(t, auth.Options{})
	ctx := context.Background()
	require.NoError(t, env.mgr.Login(ctx, testUser, testPassword))

	// A second CLI invocation sharing the token store.
	restored := login.New(env.client, env.slot, login.WithScheduler(login.NewManualScheduler()))
	assert.True(t, restored.VerifySession(ctx))
	assert.NoError(t, restored.Require())
	assert.Equal(t, testUser, restored.Snapshot().CurrentUser.Username)
}

func TestE2E_WrongPasswordCountsFailures(t *testing.T) {
	env := newE2E(t, auth.Options{})
	ctx := context.Background()

	err := env.mgr.Login(ctx, testUser, "wrong")
	require.Error(t, err)
	assert.Equal(t, protocol.KindAuthentication, protocol.KindOf(err))

	err = env.mgr.Login(ctx, testUser, "still wrong")
	require.Error(t, err)

	snap := env.mgr.Snapshot()
	assert.Equal(t, 2, snap.FailureCount)
	assert.Equal(t, login.OutcomeRejected, snap.Outcome)
	assert.False(t, snap.IsAuthenticated)
}

func TestE2E_UnknownUserDoesNotCount(t *testing.T) {
	env := newE2E(t, auth.Options{})

	err := env.mgr.Login(context.Background(), "ghost", "whatever")
	require.Error(t, err)
	assert.Equal(t, protocol.ErrCodeUserNotFound, protocol.AsError(err).Code)
	assert.Zero(t, env.mgr.Snapshot().FailureCount)
}

func TestE2E_LockoutCountdown(t *testing.T) {
	env := newE2E(t, auth.Options{BruteForce: auth.BruteForceConfig{MaxAccountFailures: 2}})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.Error(t, env.mgr.Login(ctx, testUser, "wrong"))
	}

	err := env.mgr.Login(ctx, testUser, testPassword)
	require.Error(t, err)
	assert.Equal(t, protocol.KindLocked, protocol.KindOf(err))

	snap := env.mgr.Snapshot()
	assert.Equal(t, login.OutcomeLocked, snap.Outcome)
	assert.Equal(t, 2, snap.LockoutSeconds)
	assert.Equal(t, 2, snap.FailureCount)
	assert.False(t, snap.IsAuthenticated)

	env.sched.Advance(time.Second)
	assert.Equal(t, 1, env.mgr.Snapshot().LockoutSeconds)

	env.sched.Advance(time.Second)
	snap = env.mgr.Snapshot()
	assert.Zero(t, snap.LockoutSeconds)
	assert.Zero(t, snap.FailureCount)
	assert.Zero(t, env.sched.Active())
}

func TestE2E_RevokedSessionInvalidated(t *testing.T) {
	redirected := 0
	env := newE2E(t, auth.Options{})
	ctx := context.Background()
	require.NoError(t, env.mgr.Login(ctx, testUser, testPassword))

	token, err := env.slot.Load()
	require.NoError(t, err)

	// Revoke from outside the manager, as another client logging out would.
	other := client.New(env.url, nil)
	other.SetSessionToken(token)
	require.NoError(t, other.Logout(ctx))

	guarded := login.New(env.client, env.slot,
		login.WithScheduler(login.NewManualScheduler()),
		login.WithRedirect(func() { redirected++ }),
	)
	env.client.OnUnauthorized(guarded.HandleUnauthorized)
	env.client.SetSessionToken(token)

	_, err = env.client.Status(ctx)
	require.Error(t, err)
	assert.Equal(t, protocol.KindUnauthorized, protocol.KindOf(err))
	assert.Equal(t, 1, redirected)
	assert.Empty(t, env.client.SessionToken())

	stored, err := env.slot.Load()
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Error(t, guarded.Require())
}

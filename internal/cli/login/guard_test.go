package login_test

import (
	"context"
	"testing"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestVerifySession_NoToken(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.mgr.VerifySession(context.Background()))
	assert.False(t, f.mgr.Snapshot().IsAuthenticated)
}

func TestVerifySession_Restores(t *testing.T) {
	f := newFixture(t)
	f.tokens.token = "t1"

	gomock.InOrder(
		f.api.EXPECT().SetSessionToken("t1"),
		f.api.EXPECT().Verify(gomock.Any()).Return(&protocol.VerifyResponse{
			Valid: true,
			User:  &protocol.UserInfo{Username: "admin", DisplayName: "Administrator"},
		}, nil),
	)

	require.True(t, f.mgr.VerifySession(context.Background()))

	s := f.mgr.Snapshot()
	assert.True(t, s.IsAuthenticated)
	require.NotNil(t, s.CurrentUser)
	assert.Equal(t, "Administrator", s.CurrentUser.DisplayName)
	assert.Equal(t, "t1", f.tokens.get())
	assert.NoError(t, f.mgr.Require())
}

func TestVerifySession_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *protocol.VerifyResponse
		err  error
	}{
		{"invalid token", &protocol.VerifyResponse{Valid: false}, nil},
		{"valid without user", &protocol.VerifyResponse{Valid: true}, nil},
		{"expired token", nil, protocol.NewInvalidTokenError()},
		{"network failure", nil, protocol.NewNetworkError("no route to host")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tokens.token = "stale"

			f.api.EXPECT().SetSessionToken("stale")
			f.api.EXPECT().Verify(gomock.Any()).Return(tt.resp, tt.err)
			f.api.EXPECT().SetSessionToken("")

			assert.False(t, f.mgr.VerifySession(context.Background()))
			assert.False(t, f.mgr.Snapshot().IsAuthenticated)
			assert.Empty(t, f.tokens.get())
			assert.Error(t, f.mgr.Require())
		})
	}
}

func TestVerifySession_UnreadableToken(t *testing.T) {
	f := newFixture(t)
	f.tokens.loadErr = errStorage
	f.api.EXPECT().SetSessionToken("")

	assert.False(t, f.mgr.VerifySession(context.Background()))
	assert.Equal(t, 1, f.tokens.deletes)
}

func TestHandleUnauthorized(t *testing.T) {
	redirects := 0
	f := newFixture(t, login.WithRedirect(func() { redirects++ }))

	f.expectSuccessfulLogin("t1")
	require.NoError(t, f.mgr.Login(context.Background(), "admin", "pw"))

	t.Run("login entry points are ignored", func(t *testing.T) {
		for _, path := range login.DefaultEntryPoints {
			f.mgr.HandleUnauthorized(path)
		}
		assert.True(t, f.mgr.Snapshot().IsAuthenticated)
		assert.Equal(t, "t1", f.tokens.get())
		assert.Zero(t, redirects)
	})

	t.Run("protected call deauthenticates", func(t *testing.T) {
		f.api.EXPECT().SetSessionToken("")

		f.mgr.HandleUnauthorized("/status")

		s := f.mgr.Snapshot()
		assert.False(t, s.IsAuthenticated)
		assert.Nil(t, s.CurrentUser)
		assert.Empty(t, f.tokens.get())
		assert.Equal(t, 1, redirects)
		assert.Error(t, f.mgr.Require())
	})
}

func TestHandleUnauthorized_KeepsLockout(t *testing.T) {
	f := newFixture(t)

	f.expectRejectedLogin(protocol.NewAccountLockedError(10, 10))
	_ = f.mgr.Login(context.Background(), "admin", "x")

	f.api.EXPECT().SetSessionToken("")
	f.mgr.HandleUnauthorized("/status")

	s := f.mgr.Snapshot()
	assert.Equal(t, 10, s.LockoutSeconds)
	assert.Equal(t, 10, s.FailureCount)
}

func TestWithEntryPoints(t *testing.T) {
	redirected := false
	f := newFixture(t,
		login.WithEntryPoints("/sso/callback"),
		login.WithRedirect(func() { redirected = true }),
	)

	f.mgr.HandleUnauthorized("/sso/callback")
	assert.False(t, redirected)

	f.api.EXPECT().SetSessionToken("")
	f.mgr.HandleUnauthorized("/auth/login")
	assert.True(t, redirected)
}

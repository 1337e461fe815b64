package login_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	testNow    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	errStorage = errors.New("disk unavailable")
)

// memTokens is an in-memory TokenStore with injectable failures.
type memTokens struct {
	mu        sync.Mutex
	token     string
	loadErr   error
	saveErr   error
	deleteErr error
	deletes   int
}

func (m *memTokens) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.loadErr
}

func (m *memTokens) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	return nil
}

func (m *memTokens) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.token = ""
	return nil
}

func (m *memTokens) get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

type fixture struct {
	api    *login.MockAPI
	tokens *memTokens
	sched  *login.ManualScheduler
	mgr    *login.Manager
}

func newFixture(t *testing.T, opts ...login.Option) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		api:    login.NewMockAPI(ctrl),
		tokens: &memTokens{},
		sched:  login.NewManualScheduler(),
	}
	opts = append([]login.Option{
		login.WithScheduler(f.sched),
		login.WithClock(func() time.Time { return testNow }),
	}, opts...)
	f.mgr = login.New(f.api, f.tokens, opts...)
	t.Cleanup(f.mgr.Close)
	return f
}

func challenge(id string) *protocol.ChallengeResponse {
	return &protocol.ChallengeResponse{
		Challenge:  id,
		Salt:       "abc123",
		Iterations: 16,
		ExpiresAt:  protocol.NewTimestamp(testNow.Add(30 * time.Second)),
	}
}

// expectRejectedLogin sets up one attempt that the server answers with err.
func (f *fixture) expectRejectedLogin(err error) {
	f.api.EXPECT().RequestChallenge(gomock.Any(), "admin").Return(challenge("c1"), nil)
	f.api.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, err)
}

func (f *fixture) expectSuccessfulLogin(token string) {
	f.api.EXPECT().RequestChallenge(gomock.Any(), "admin").Return(challenge("c-ok"), nil)
	f.api.EXPECT().Login(gomock.Any(), gomock.Any()).Return(&protocol.LoginResponse{
		Token:     token,
		ExpiresAt: protocol.NewTimestamp(testNow.Add(24 * time.Hour)),
		User:      protocol.UserInfo{Username: "admin", DisplayName: "Administrator"},
	}, nil)
	f.api.EXPECT().SetSessionToken(token)
}

func requireAPIError(t *testing.T, err error, code protocol.ErrorCode) *protocol.ErrorResponse {
	t.Helper()
	require.Error(t, err)
	apiErr := protocol.AsError(err)
	require.Equal(t, code, apiErr.Code, apiErr.Error())
	return apiErr
}

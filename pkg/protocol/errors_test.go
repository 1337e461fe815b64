package protocol_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *protocol.ErrorResponse
		expected string
	}{
		{
			name:     "without details",
			err:      protocol.NewAuthenticationError("Invalid credentials"),
			expected: "AUTHENTICATION_ERROR: Invalid credentials",
		},
		{
			name:     "with details",
			err:      protocol.NewNetworkError("connection refused"),
			expected: "NETWORK_ERROR: Network error (connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorResponse_Kind(t *testing.T) {
	tests := []struct {
		code   protocol.ErrorCode
		kind   protocol.Kind
		counts bool
	}{
		{protocol.ErrCodeValidation, protocol.KindValidation, false},
		{protocol.ErrCodeAuthentication, protocol.KindAuthentication, true},
		{protocol.ErrCodeAccountLocked, protocol.KindLocked, false},
		{protocol.ErrCodeTooManyRequests, protocol.KindRateLimited, false},
		{protocol.ErrCodeUserNotFound, protocol.KindNotFound, false},
		{protocol.ErrCodeMissingToken, protocol.KindUnauthorized, false},
		{protocol.ErrCodeInvalidToken, protocol.KindUnauthorized, false},
		{protocol.ErrCodeNetwork, protocol.KindNetwork, false},
		{protocol.ErrCodeInternal, protocol.KindInternal, false},
		{protocol.ErrCodeUnknown, protocol.KindInternal, false},
		{"SOMETHING_NEW", protocol.KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := protocol.NewError(tt.code, "msg")
			assert.Equal(t, tt.kind, err.Kind())
			assert.Equal(t, tt.counts, err.CountsTowardLockout())
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	t.Run("account locked carries retry and attempts", func(t *testing.T) {
		data, err := json.Marshal(protocol.NewAccountLockedError(5, 11))
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "ACCOUNT_LOCKED", decoded["code"])
		assert.InDelta(t, 5, decoded["retryAfter"], 0)
		assert.InDelta(t, 11, decoded["failedAttempts"], 0)
		assert.NotContains(t, decoded, "Status")
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		data, err := json.Marshal(protocol.NewAuthenticationError("bad proof"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"code":"AUTHENTICATION_ERROR","message":"bad proof"}`, string(data))
	})

	t.Run("server payload decodes", func(t *testing.T) {
		var e protocol.ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(`{"code":"TOO_MANY_REQUESTS","message":"slow down","retryAfter":30}`), &e))
		assert.Equal(t, protocol.KindRateLimited, e.Kind())
		assert.Equal(t, 30, e.RetryAfterSeconds())
		assert.Nil(t, e.FailedAttempts)
	})
}

func TestAsError(t *testing.T) {
	assert.Nil(t, protocol.AsError(nil))

	locked := protocol.NewAccountLockedError(4, 10)
	wrapped := fmt.Errorf("login: %w", locked)
	assert.Same(t, locked, protocol.AsError(wrapped))
	assert.Equal(t, protocol.KindLocked, protocol.KindOf(wrapped))

	plain := protocol.AsError(fmt.Errorf("disk full"))
	assert.Equal(t, protocol.ErrCodeInternal, plain.Code)
	assert.Equal(t, "disk full", plain.Details)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, protocol.NewAuthenticationError("x").RetryAfterSeconds())
	assert.Equal(t, 7, protocol.NewTooManyRequestsError(7).RetryAfterSeconds())
}

package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_JSON(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		resp := protocol.OK(protocol.ChallengeResponse{
			Challenge:  "c1",
			Salt:       "abc123",
			Iterations: 4096,
			ExpiresAt:  protocol.NewTimestamp(time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)),
		})

		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"success": true,
			"data": {"challenge":"c1","salt":"abc123","iterations":4096,"expiresAt":"2024-01-01T12:00:30Z"}
		}`, string(data))
	})

	t.Run("failure envelope", func(t *testing.T) {
		data, err := json.Marshal(protocol.Fail(protocol.NewUserNotFoundError()))
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":false,"error":{"code":"USER_NOT_FOUND","message":"User not found"}}`, string(data))
	})

	t.Run("login response decodes", func(t *testing.T) {
		body := `{"success":true,"data":{"token":"t1","expiresAt":"2024-01-31T12:00:00","user":{"username":"admin","displayName":"Administrator"}}}`

		var resp protocol.Response[protocol.LoginResponse]
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		require.NotNil(t, resp.Data)
		assert.True(t, resp.Success)
		assert.Equal(t, "t1", resp.Data.Token)
		assert.Equal(t, "Administrator", resp.Data.User.DisplayName)
		assert.Equal(t, 2024, resp.Data.ExpiresAt.Year())
	})

	t.Run("verify invalid omits optional fields", func(t *testing.T) {
		data, err := json.Marshal(protocol.OK(protocol.VerifyResponse{Valid: false}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"data":{"valid":false}}`, string(data))
	})
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339 utc", `"2024-01-01T12:00:00Z"`, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), false},
		{"rfc3339 offset", `"2024-01-01T12:00:00+02:00"`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), false},
		{"zoneless local", `"2024-01-01T12:00:00"`, time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local), false},
		{"zoneless fractional", `"2024-01-01T12:00:00.123"`, time.Date(2024, 1, 1, 12, 0, 0, 123000000, time.Local), false},
		{"null", `null`, time.Time{}, false},
		{"empty", `""`, time.Time{}, false},
		{"garbage", `"yesterday"`, time.Time{}, true},
		{"number", `12345`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts protocol.Timestamp
			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "want %v, got %v", tt.want, ts.Time)
		})
	}
}

func TestTimestamp_MarshalZero(t *testing.T) {
	data, err := json.Marshal(protocol.Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

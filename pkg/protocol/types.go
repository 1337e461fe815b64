package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Response is the envelope every API endpoint answers with.
// Exactly one of Data and Error is set, matching Success.
type Response[T any] struct {
	Success bool           `json:"success"`
	Data    *T             `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: &data}
}

// Fail wraps err in a failed envelope.
func Fail(err *ErrorResponse) Response[struct{}] {
	return Response[struct{}]{Success: false, Error: err}
}

// ChallengeRequest represents POST /auth/challenge.
type ChallengeRequest struct {
	Username string `json:"username"`
}

// ChallengeResponse carries a single-use login challenge.
type ChallengeResponse struct {
	Challenge  string    `json:"challenge"`
	Salt       string    `json:"salt"`
	Iterations int       `json:"iterations"`
	ExpiresAt  Timestamp `json:"expiresAt"`
}

// LoginRequest represents POST /auth/login.
type LoginRequest struct {
	Username    string `json:"username"`
	Challenge   string `json:"challenge"`
	ClientProof string `json:"clientProof"`
}

// UserInfo identifies the authenticated account.
type UserInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// LoginResponse carries the session token issued after a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt Timestamp `json:"expiresAt"`
	User      UserInfo  `json:"user"`
}

// VerifyResponse represents GET /auth/verify.
type VerifyResponse struct {
	Valid     bool       `json:"valid"`
	ExpiresAt *Timestamp `json:"expiresAt,omitempty"`
	User      *UserInfo  `json:"user,omitempty"`
}

// StatusResponse represents GET /status.
type StatusResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	User    UserInfo `json:"user"`
}

// zonelessLayout is the timestamp format of servers that emit local time
// without an offset.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a JSON time that accepts RFC 3339 as well as zone-less local
// timestamps. It always marshals as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(zonelessLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

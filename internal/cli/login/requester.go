package login

import (
	"context"
	"strings"
	"time"

	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// Challenge is a single-use login challenge issued by the server.
type Challenge struct {
	ID         string
	Salt       string
	Iterations int
	ExpiresAt  time.Time
}

// Requester obtains challenges. It relays the server's decision and adds
// no policy of its own beyond input validation.
type Requester struct {
	api API
	now func() time.Time
}

// NewRequester creates a requester using api. now may be nil.
func NewRequester(api API, now func() time.Time) *Requester {
	if now == nil {
		now = time.Now
	}
	return &Requester{api: api, now: now}
}

// Request asks the server for a challenge for username.
// Server errors are returned unchanged as *protocol.ErrorResponse.
func (r *Requester) Request(ctx context.Context, username string) (*Challenge, error) {
	if strings.TrimSpace(username) == "" {
		return nil, protocol.NewValidationError("username is required")
	}

	resp, err := r.api.RequestChallenge(ctx, username)
	if err != nil {
		return nil, err
	}

	ch := &Challenge{
		ID:         resp.Challenge,
		Salt:       resp.Salt,
		Iterations: resp.Iterations,
		ExpiresAt:  resp.ExpiresAt.Time,
	}
	if !ch.ExpiresAt.IsZero() && !r.now().Before(ch.ExpiresAt) {
		return nil, protocol.NewValidationError("challenge expired before it could be used")
	}
	return ch, nil
}

package login

import (
	"context"

	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// API is the subset of the authentication service the login flow consumes.
// *client.Client implements it.
type API interface {
	RequestChallenge(ctx context.Context, username string) (*protocol.ChallengeResponse, error)
	Login(ctx context.Context, req protocol.LoginRequest) (*protocol.LoginResponse, error)
	Verify(ctx context.Context) (*protocol.VerifyResponse, error)
	Logout(ctx context.Context) error
	SetSessionToken(token string)
}

// TokenStore persists the opaque session token. Load returns "" when no
// token is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Delete() error
}

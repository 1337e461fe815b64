package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTokenNotFound is returned when a session token is not known.
	ErrTokenNotFound = errors.New("session token not found")

	// ErrTokenExpired is returned when a session token has expired.
	ErrTokenExpired = errors.New("session token expired")
)

const (
	// DefaultTokenTTL is the default session token lifetime (30 days).
	DefaultTokenTTL = 30 * 24 * time.Hour

	// MinTokenTTL is the minimum allowed token TTL.
	MinTokenTTL = 1 * time.Minute

	// CleanupIntervalTokens is how often expired tokens are removed.
	CleanupIntervalTokens = 1 * time.Hour
)

// Token is an issued session token with its metadata.
type Token struct {
	Value      string
	Username   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time
}

// TokenManager issues opaque bearer tokens and keeps them in memory until
// they expire or are revoked.
type TokenManager struct {
	mu       sync.RWMutex
	tokens   map[string]*Token
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewTokenManager creates a token manager with the given TTL.
// A zero ttl selects DefaultTokenTTL; anything shorter than MinTokenTTL is raised to it.
func NewTokenManager(ttl time.Duration) *TokenManager {
	tm := newTokenManager(ttl, time.Now)
	go tm.cleanupExpiredTokens()
	return tm
}

func newTokenManager(ttl time.Duration, now func() time.Time) *TokenManager {
	switch {
	case ttl == 0:
		ttl = DefaultTokenTTL
	case ttl < MinTokenTTL:
		ttl = MinTokenTTL
	}
	return &TokenManager{
		tokens: make(map[string]*Token),
		ttl:    ttl,
		now:    now,
		stopCh: make(chan struct{}),
	}
}

// Issue creates a new token for username.
func (tm *TokenManager) Issue(username string) Token {
	now := tm.now()
	t := &Token{
		Value:      uuid.NewString(),
		Username:   username,
		CreatedAt:  now,
		ExpiresAt:  now.Add(tm.ttl),
		LastUsedAt: now,
	}

	tm.mu.Lock()
	tm.tokens[t.Value] = t
	tm.mu.Unlock()

	return *t
}

// Validate returns the token record and refreshes its last-used time.
func (tm *TokenManager) Validate(value string) (Token, error) {
	if value == "" {
		return Token{}, ErrTokenNotFound
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	t, ok := tm.tokens[value]
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	now := tm.now()
	if now.After(t.ExpiresAt) {
		delete(tm.tokens, value)
		return Token{}, ErrTokenExpired
	}
	t.LastUsedAt = now
	return *t, nil
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (tm *TokenManager) Revoke(value string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, ok := tm.tokens[value]; !ok {
		return false
	}
	delete(tm.tokens, value)
	return true
}

// RevokeUser deletes every token of username and returns how many were removed.
func (tm *TokenManager) RevokeUser(username string) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	n := 0
	for value, t := range tm.tokens {
		if t.Username == username {
			delete(tm.tokens, value)
			n++
		}
	}
	return n
}

// Count returns the current number of tokens.
func (tm *TokenManager) Count() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tokens)
}

// Stop stops the background cleanup goroutine.
func (tm *TokenManager) Stop() {
	tm.stopOnce.Do(func() { close(tm.stopCh) })
}

func (tm *TokenManager) cleanupExpiredTokens() {
	ticker := time.NewTicker(CleanupIntervalTokens)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tm.performCleanup()
		case <-tm.stopCh:
			return
		}
	}
}

// performCleanup removes all expired tokens and returns how many were dropped.
func (tm *TokenManager) performCleanup() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := tm.now()
	n := 0
	for value, t := range tm.tokens {
		if now.After(t.ExpiresAt) {
			delete(tm.tokens, value)
			n++
		}
	}
	return n
}

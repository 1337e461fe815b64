package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrChallengeNotFound is returned for an unknown challenge ID.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeUsed is returned when a challenge is presented a second time.
	ErrChallengeUsed = errors.New("challenge already used")

	// ErrChallengeExpired is returned when a challenge is presented after its TTL.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrChallengeMismatch is returned when a challenge is presented for
	// a different user than the one it was issued to.
	ErrChallengeMismatch = errors.New("challenge issued to another user")
)

const (
	// DefaultChallengeTTL is how long an issued challenge stays valid.
	DefaultChallengeTTL = 30 * time.Second

	// CleanupIntervalChallenges is how often expired challenges are removed.
	CleanupIntervalChallenges = 1 * time.Minute
)

// Challenge is a single-use nonce handed to a client for one login attempt.
type Challenge struct {
	ID         string
	Username   string
	Salt       string
	Iterations int
	ExpiresAt  time.Time
	used       bool
}

// ChallengeStore keeps issued challenges until they are consumed or expire.
// Consumed challenges are remembered until expiry so replays are reported
// as ErrChallengeUsed.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	ttl        time.Duration
	now        func() time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewChallengeStore creates a store with the given TTL and background cleanup.
// A non-positive ttl selects DefaultChallengeTTL.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	s := newChallengeStore(ttl, time.Now)
	go s.cleanupLoop()
	return s
}

func newChallengeStore(ttl time.Duration, now func() time.Time) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{
		challenges: make(map[string]*Challenge),
		ttl:        ttl,
		now:        now,
		stopCh:     make(chan struct{}),
	}
}

// Issue creates and stores a challenge for username.
func (s *ChallengeStore) Issue(username, salt string, iterations int) Challenge {
	c := &Challenge{
		ID:         uuid.NewString(),
		Username:   username,
		Salt:       salt,
		Iterations: iterations,
		ExpiresAt:  s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.challenges[c.ID] = c
	s.mu.Unlock()

	return *c
}

// Consume validates and burns a challenge. The challenge can never be used
// again, whatever the outcome.
func (s *ChallengeStore) Consume(id, username string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	if c.used {
		return Challenge{}, ErrChallengeUsed
	}
	if s.now().After(c.ExpiresAt) {
		delete(s.challenges, id)
		return Challenge{}, ErrChallengeExpired
	}

	c.used = true
	if c.Username != username {
		return Challenge{}, ErrChallengeMismatch
	}
	return *c, nil
}

// Count returns the number of tracked challenges (for testing/monitoring).
func (s *ChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Stop stops the background cleanup goroutine.
func (s *ChallengeStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *ChallengeStore) cleanupLoop() {
	ticker := time.NewTicker(CleanupIntervalChallenges)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup removes all expired challenges, used or not.
func (s *ChallengeStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, c := range s.challenges {
		if now.After(c.ExpiresAt) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed
}

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultChallengeRate is the sustained challenge requests per second per client IP.
	DefaultChallengeRate = 1.0

	// DefaultChallengeBurst is the number of challenge requests a client IP may burst.
	DefaultChallengeBurst = 5

	// CleanupIntervalRateLimit is how often idle client limiters are dropped.
	CleanupIntervalRateLimit = 2 * time.Minute

	// idleThreshold is how long a limiter may go unused before cleanup drops it.
	idleThreshold = 5 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles challenge requests per client IP with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given burst.
// Non-positive values select the defaults.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := newRateLimiter(perSecond, burst, time.Now)
	go rl.cleanupInactiveClients()
	return rl
}

func newRateLimiter(perSecond float64, burst int, now func() time.Time) *RateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultChallengeRate
	}
	if burst <= 0 {
		burst = DefaultChallengeBurst
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

// Allow reports whether clientIP may proceed. When it may not, retryAfter
// is the wait in whole seconds until the next token is available.
func (rl *RateLimiter) Allow(clientIP string) (ok bool, retryAfter int) {
	now := rl.now()

	rl.mu.Lock()
	c, exists := rl.clients[clientIP]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientIP] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, FormatRetryAfter(time.Second)
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, FormatRetryAfter(d)
	}
	return true, 0
}

// GetTrackedClientCount returns the number of clients currently being tracked.
func (rl *RateLimiter) GetTrackedClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop stops the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanupInactiveClients() {
	ticker := time.NewTicker(CleanupIntervalRateLimit)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.performCleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) performCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleThreshold)
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

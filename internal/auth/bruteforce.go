package auth

import (
	"sync"
	"time"
)

const (
	// DefaultFailureWindow is how long a failure counter survives its last write.
	DefaultFailureWindow = 10 * time.Minute

	// DefaultMaxIPFailures is the failure count at which a client IP is locked.
	DefaultMaxIPFailures = 20

	// DefaultMaxAccountFailures is the failure count at which an account is locked.
	// It is also the point where exponential backoff starts.
	DefaultMaxAccountFailures = 10

	// DefaultMaxLockoutSeconds caps a single lockout.
	DefaultMaxLockoutSeconds = 300

	// CleanupIntervalBruteForce is how often stale counters are dropped.
	CleanupIntervalBruteForce = 2 * time.Minute
)

// BruteForceConfig configures BruteForceGuard.
type BruteForceConfig struct {
	Window             time.Duration
	MaxIPFailures      int
	MaxAccountFailures int
	MaxLockoutSeconds  int
}

// DefaultBruteForceConfig returns the stock thresholds.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{
		Window:             DefaultFailureWindow,
		MaxIPFailures:      DefaultMaxIPFailures,
		MaxAccountFailures: DefaultMaxAccountFailures,
		MaxLockoutSeconds:  DefaultMaxLockoutSeconds,
	}
}

// failureCounter counts failures for one key. It expires Window after
// the last recorded failure.
type failureCounter struct {
	Count      int
	LastFailed time.Time
}

// BruteForceGuard tracks failed logins per client IP and per account and
// decides whether a new attempt is allowed.
//
// Lockout grows exponentially once a counter reaches MaxAccountFailures:
// 2^(failures-threshold+1) seconds, capped at MaxLockoutSeconds.
type BruteForceGuard struct {
	mu       sync.Mutex
	cfg      BruteForceConfig
	ips      map[string]*failureCounter
	accounts map[string]*failureCounter
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBruteForceGuard creates a guard with background cleanup.
// Zero fields in cfg fall back to the defaults.
func NewBruteForceGuard(cfg BruteForceConfig) *BruteForceGuard {
	g := newBruteForceGuard(cfg, time.Now)
	go g.cleanupLoop()
	return g
}

func newBruteForceGuard(cfg BruteForceConfig, now func() time.Time) *BruteForceGuard {
	def := DefaultBruteForceConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxIPFailures <= 0 {
		cfg.MaxIPFailures = def.MaxIPFailures
	}
	if cfg.MaxAccountFailures <= 0 {
		cfg.MaxAccountFailures = def.MaxAccountFailures
	}
	if cfg.MaxLockoutSeconds <= 0 {
		cfg.MaxLockoutSeconds = def.MaxLockoutSeconds
	}

	return &BruteForceGuard{
		cfg:      cfg,
		ips:      make(map[string]*failureCounter),
		accounts: make(map[string]*failureCounter),
		now:      now,
		stopCh:   make(chan struct{}),
	}
}

// CheckLoginAllowed returns the lockout in seconds for an attempt by
// username from ip, or 0 if the attempt may proceed. The IP limit is
// checked before the account limit.
func (g *BruteForceGuard) CheckLoginAllowed(username, ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.countLocked(g.ips, ip); n >= g.cfg.MaxIPFailures {
		return g.Backoff(n)
	}
	if n := g.countLocked(g.accounts, username); n >= g.cfg.MaxAccountFailures {
		return g.Backoff(n)
	}
	return 0
}

// RecordFailure increments both the IP and the account counter.
func (g *BruteForceGuard) RecordFailure(username, ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.incrementLocked(g.ips, ip, now)
	g.incrementLocked(g.accounts, username, now)
}

// RecordSuccess clears both counters after a successful login.
func (g *BruteForceGuard) RecordSuccess(username, ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.ips, ip)
	delete(g.accounts, username)
}

// FailureCount returns the live failure count for an account.
func (g *BruteForceGuard) FailureCount(username string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.countLocked(g.accounts, username)
}

// IPFailureCount returns the live failure count for a client IP.
func (g *BruteForceGuard) IPFailureCount(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.countLocked(g.ips, ip)
}

// Backoff returns the lockout in seconds for failCount failures.
// Counts below MaxAccountFailures yield 0.
func (g *BruteForceGuard) Backoff(failCount int) int {
	threshold := g.cfg.MaxAccountFailures
	if failCount < threshold {
		return 0
	}

	exponent := failCount - threshold + 1
	if exponent >= 30 {
		return g.cfg.MaxLockoutSeconds
	}
	return min(1<<exponent, g.cfg.MaxLockoutSeconds)
}

// Stop stops the background cleanup goroutine. Safe to call more than once.
func (g *BruteForceGuard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

func (g *BruteForceGuard) countLocked(m map[string]*failureCounter, key string) int {
	c, ok := m[key]
	if !ok {
		return 0
	}
	if g.now().Sub(c.LastFailed) > g.cfg.Window {
		delete(m, key)
		return 0
	}
	return c.Count
}

func (g *BruteForceGuard) incrementLocked(m map[string]*failureCounter, key string, now time.Time) {
	c, ok := m[key]
	if !ok || now.Sub(c.LastFailed) > g.cfg.Window {
		c = &failureCounter{}
		m[key] = c
	}
	c.Count++
	c.LastFailed = now
}

func (g *BruteForceGuard) cleanupLoop() {
	ticker := time.NewTicker(CleanupIntervalBruteForce)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.performCleanup()
		case <-g.stopCh:
			return
		}
	}
}

// performCleanup drops counters whose window has passed.
func (g *BruteForceGuard) performCleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.cfg.Window)
	for _, m := range []map[string]*failureCounter{g.ips, g.accounts} {
		for key, c := range m {
			if c.LastFailed.Before(cutoff) {
				delete(m, key)
			}
		}
	}
}

// trackedCount returns the number of live counters, for tests.
func (g *BruteForceGuard) trackedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ips) + len(g.accounts)
}

// FormatRetryAfter formats a duration as seconds for use in HTTP Retry-After header.
// Returns the number of seconds rounded up to the nearest integer.
func FormatRetryAfter(d time.Duration) int {
	seconds := int(d.Seconds())
	if d.Nanoseconds()%int64(time.Second) > 0 {
		seconds++
	}
	return seconds
}

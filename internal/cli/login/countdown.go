package login

import (
	"sync"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/logging"
)

const tickInterval = time.Second

// Countdown decrements State.LockoutSeconds once per second until it
// reaches zero, then clears the failure count. At most one countdown is
// live; starting a new one replaces the old.
type Countdown struct {
	state  *AuthState
	sched  Scheduler
	logger *logging.Logger

	mu   sync.Mutex
	task Task
	// gen identifies the live task so that a tick racing with Cancel or a
	// restart is dropped.
	gen uint64
}

// NewCountdown creates a countdown writing to state.
func NewCountdown(state *AuthState, sched Scheduler, logger *logging.Logger) *Countdown {
	return &Countdown{state: state, sched: sched, logger: logger}
}

// Start replaces any running countdown with one of the given length.
// A non-positive length stops the countdown and clears the lockout.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if seconds <= 0 {
		c.state.update(func(s *State) { s.LockoutSeconds = 0 })
		return
	}

	c.state.update(func(s *State) { s.LockoutSeconds = seconds })
	gen := c.gen
	c.task = c.sched.Every(tickInterval, func() { c.tick(gen) })

	c.logger.Debug("lockout countdown started", map[string]any{"seconds": seconds})
}

// Cancel stops the running countdown, if any. State is left as is.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Active reports whether a countdown is running.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task != nil
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.task == nil {
		return
	}

	snap := c.state.update(func(s *State) {
		s.LockoutSeconds--
		if s.LockoutSeconds <= 0 {
			s.LockoutSeconds = 0
			s.FailureCount = 0
		}
	})

	if snap.LockoutSeconds == 0 {
		c.stopLocked()
		c.logger.Debug("lockout countdown expired")
	}
}

func (c *Countdown) stopLocked() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	c.gen++
}

package login_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/login"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualScheduler_Order(t *testing.T) {
	sched := login.NewManualScheduler()

	var fired []string
	sched.Every(2*time.Second, func() { fired = append(fired, "slow") })
	sched.Every(time.Second, func() { fired = append(fired, "fast") })

	sched.Advance(4 * time.Second)
	assert.Equal(t, []string{"fast", "slow", "fast", "fast", "slow", "fast"}, fired[:6])
}

func TestManualScheduler_CancelFromTask(t *testing.T) {
	sched := login.NewManualScheduler()

	runs := 0
	var task login.Task
	task = sched.Every(time.Second, func() {
		runs++
		if runs == 2 {
			task.Cancel()
		}
	})

	sched.Advance(10 * time.Second)
	assert.Equal(t, 2, runs)
	assert.Zero(t, sched.Active())
}

func TestTickerScheduler(t *testing.T) {
	var runs atomic.Int32
	task := login.TickerScheduler{}.Every(5*time.Millisecond, func() { runs.Add(1) })

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	task.Cancel()
	task.Cancel()
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1)
}

// Package lifecycle handles mirror-authd's process signals: SIGTERM and
// SIGINT start a graceful shutdown, SIGHUP triggers a reload.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ShutdownManager turns process signals into context cancellation and
// reload callbacks.
type ShutdownManager struct {
	signalChan chan os.Signal
	doneChan   chan struct{}
	onReload   func()

	mu       sync.Mutex
	cancel   context.CancelFunc
	shutdown bool
	stopped  bool
	reason   string
	reloads  int
}

// NewShutdownManager creates a new shutdown manager. onReload runs on
// SIGHUP and may be nil.
func NewShutdownManager(onReload func()) *ShutdownManager {
	return &ShutdownManager{
		signalChan: make(chan os.Signal, 4),
		doneChan:   make(chan struct{}),
		onReload:   onReload,
	}
}

// Start begins listening for signals. The returned context is cancelled
// when shutdown is initiated or ctx ends.
func (sm *ShutdownManager) Start(ctx context.Context) context.Context {
	signal.Notify(sm.signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	shutdownCtx, cancel := context.WithCancel(ctx)
	sm.mu.Lock()
	sm.cancel = cancel
	sm.mu.Unlock()

	go sm.loop(shutdownCtx)
	return shutdownCtx
}

func (sm *ShutdownManager) loop(ctx context.Context) {
	for {
		select {
		case sig := <-sm.signalChan:
			if sig == syscall.SIGHUP {
				sm.reload()
				continue
			}
			sm.Shutdown(fmt.Sprintf("received signal: %v", sig))
			return
		case <-sm.doneChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (sm *ShutdownManager) reload() {
	sm.mu.Lock()
	sm.reloads++
	fn := sm.onReload
	sm.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Shutdown initiates a graceful shutdown with the given reason. Only the
// first reason is kept.
func (sm *ShutdownManager) Shutdown(reason string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return
	}
	sm.shutdown = true
	sm.reason = reason
	if sm.cancel != nil {
		sm.cancel()
	}
}

// IsShutdown returns whether shutdown has been initiated.
func (sm *ShutdownManager) IsShutdown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.shutdown
}

// Reason returns the reason for shutdown.
func (sm *ShutdownManager) Reason() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.reason
}

// Reloads returns how many reloads were triggered.
func (sm *ShutdownManager) Reloads() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.reloads
}

// Stop stops listening for signals. It is safe to call more than once.
func (sm *ShutdownManager) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.stopped {
		return
	}
	sm.stopped = true
	signal.Stop(sm.signalChan)
	close(sm.doneChan)
}

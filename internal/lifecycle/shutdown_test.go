package lifecycle

import (
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestShutdownManager_Shutdown(t *testing.T) {
	sm := NewShutdownManager(nil)
	defer sm.Stop()

	if sm.IsShutdown() {
		t.Error("expected shutdown to be false initially")
	}

	sm.Shutdown("test shutdown")
	sm.Shutdown("second reason")

	if !sm.IsShutdown() {
		t.Error("expected shutdown to be true after calling Shutdown()")
	}
	if sm.Reason() != "test shutdown" {
		t.Errorf("expected reason 'test shutdown', got '%s'", sm.Reason())
	}
}

func TestShutdownManager_Start(t *testing.T) {
	t.Run("cancels context on Shutdown()", func(t *testing.T) {
		sm := NewShutdownManager(nil)
		defer sm.Stop()

		ctx := sm.Start(context.Background())
		sm.Shutdown("manual shutdown")

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Error("context was not cancelled within timeout")
		}
	})

	t.Run("cancels context on signal", func(t *testing.T) {
		sm := NewShutdownManager(nil)
		defer sm.Stop()

		ctx := sm.Start(context.Background())
		sm.signalChan <- syscall.SIGTERM

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context was not cancelled within timeout")
		}

		if !sm.IsShutdown() {
			t.Error("expected shutdown to be true after signal")
		}
		if sm.Reason() != "received signal: terminated" {
			t.Errorf("unexpected reason %q", sm.Reason())
		}
	})

	t.Run("cancels context with parent", func(t *testing.T) {
		sm := NewShutdownManager(nil)
		defer sm.Stop()

		parent, cancel := context.WithCancel(context.Background())
		ctx := sm.Start(parent)
		cancel()

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Error("context was not cancelled with its parent")
		}
	})
}

func TestShutdownManager_Reload(t *testing.T) {
	var reloads atomic.Int32
	sm := NewShutdownManager(func() { reloads.Add(1) })
	defer sm.Stop()

	ctx := sm.Start(context.Background())
	sm.signalChan <- syscall.SIGHUP
	sm.signalChan <- syscall.SIGHUP

	deadline := time.Now().Add(time.Second)
	for reloads.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := reloads.Load(); got != 2 {
		t.Fatalf("expected 2 reloads, got %d", got)
	}
	if sm.Reloads() != 2 {
		t.Errorf("expected Reloads() = 2, got %d", sm.Reloads())
	}
	if ctx.Err() != nil {
		t.Error("SIGHUP must not cancel the context")
	}
	if sm.IsShutdown() {
		t.Error("SIGHUP must not initiate shutdown")
	}
}

func TestShutdownManager_StopIdempotent(t *testing.T) {
	sm := NewShutdownManager(nil)
	sm.Start(context.Background())
	sm.Stop()
	sm.Stop()
}

func TestNotifySystemd(t *testing.T) {
	t.Run("without socket", func(t *testing.T) {
		t.Setenv("NOTIFY_SOCKET", "")
		if NotifySystemd(StateReady) {
			t.Error("expected no notification without NOTIFY_SOCKET")
		}
	})

	t.Run("with socket", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notify.sock")
		conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
		if err != nil {
			t.Skipf("unixgram sockets unavailable: %v", err)
		}
		defer conn.Close()
		t.Setenv("NOTIFY_SOCKET", path)

		if !NotifySystemd(StateReady) {
			t.Fatal("expected notification to be sent")
		}

		buf := make([]byte, 64)
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("failed to read notification: %v", err)
		}
		if string(buf[:n]) != StateReady {
			t.Errorf("expected %q, got %q", StateReady, buf[:n])
		}
	})
}

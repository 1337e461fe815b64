package lifecycle

import (
	"net"
	"os"
)

// systemd notification states.
const (
	StateReady     = "READY=1"
	StateReloading = "RELOADING=1"
	StateStopping  = "STOPPING=1"
)

// NotifySystemd sends state to systemd when running as a Type=notify
// service. It reports whether a notification was sent; failures are ignored.
func NotifySystemd(state string) bool {
	socket := os.Getenv("NOTIFY_SOCKET")
	if socket == "" {
		return false
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: socket, Net: "unixgram"})
	if err != nil {
		return false
	}
	defer func() {
		_ = conn.Close()
	}()

	_, err = conn.Write([]byte(state))
	return err == nil
}

//go:build !windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/easysoft/xuanxuan-host/internal/config"
)

// DefaultEndpoint returns the per-user host socket path
// (~/.config/xuanxuan/host.sock).
func DefaultEndpoint() string {
	return filepath.Join(config.ConfigDirectory(), "host.sock")
}

// Listen creates the host socket. A stale socket file is removed first; the
// single-instance lock guarantees no other host owns it.
func Listen(endpoint string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(endpoint), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if _, err := os.Stat(endpoint); err == nil {
		if err := os.Remove(endpoint); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", endpoint, err)
	}

	// Owner-only access
	if err := os.Chmod(endpoint, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return listener, nil
}

// Dial connects to the host socket.
func Dial(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host at %s: %w", endpoint, err)
	}
	return conn, nil
}

// CleanupEndpoint removes the socket file.
func CleanupEndpoint(endpoint string) {
	os.Remove(endpoint)
}

//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"os/user"
	"strings"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\xuanxuan-host`

// DefaultEndpoint returns a per-user named pipe path.
func DefaultEndpoint() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return pipePrefix
	}
	name := strings.NewReplacer(`\`, "-", "/", "-", " ", "_").Replace(u.Username)
	return pipePrefix + "-" + name
}

// Listen creates the host named pipe. The pipe uses byte mode so the
// newline-delimited stream behaves like a socket.
func Listen(endpoint string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		MessageMode:      false,
		InputBufferSize:  64 * 1024,
		OutputBufferSize: 64 * 1024,
	}
	listener, err := winio.ListenPipe(endpoint, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create named pipe: %w", err)
	}
	return listener, nil
}

// Dial connects to the host named pipe.
func Dial(ctx context.Context, endpoint string) (net.Conn, error) {
	conn, err := winio.DialPipeContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host at %s: %w", endpoint, err)
	}
	return conn, nil
}

// CleanupEndpoint is a no-op; named pipes vanish with their last handle.
func CleanupEndpoint(endpoint string) {}

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// EventHandler receives the arguments of a relayed event.
type EventHandler func(args []json.RawMessage)

// Client is the window-process side of a host connection.
// Run must be running for Call and event delivery to work.
type Client struct {
	conn        *Conn
	logger      *logging.Logger
	callTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]func(*Message)
	events   map[string]EventHandler
}

// Connect dials the host and wraps the connection in a Client.
func Connect(ctx context.Context, endpoint string, logger *logging.Logger) (*Client, error) {
	raw, err := Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return NewClient(raw, logger), nil
}

// NewClient creates a Client on an established connection.
func NewClient(raw net.Conn, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		conn:        NewConn(raw, logger),
		logger:      logger,
		callTimeout: constants.DefaultCallTimeout,
		handlers:    make(map[string]func(*Message)),
		events:      make(map[string]EventHandler),
	}
}

// SetCallTimeout sets the timeout applied to calls whose context has no deadline.
// Zero disables it.
func (c *Client) SetCallTimeout(d time.Duration) {
	c.callTimeout = d
}

// Conn returns the underlying connection.
func (c *Client) Conn() *Conn {
	return c.conn
}

// Run reads from the host until the connection closes.
func (c *Client) Run() error {
	return c.conn.Serve(c.dispatch)
}

func (c *Client) dispatch(msg *Message) {
	c.mu.RLock()
	handler := c.handlers[msg.Channel]
	event := c.events[msg.Channel]
	c.mu.RUnlock()

	switch {
	case handler != nil:
		handler(msg)
	case event != nil:
		event(msg.Args)
	default:
		c.logger.Debug().Str("channel", msg.Channel).Msg("No handler for host message")
	}
}

// On registers fn for messages the host pushes on channel, replacing any
// previous handler.
func (c *Client) On(channel string, fn func(*Message)) {
	c.mu.Lock()
	c.handlers[channel] = fn
	c.mu.Unlock()
}

// Hello announces the window to the host. Sent once the window has loaded.
func (c *Client) Hello(name string) error {
	c.conn.SetName(name)
	return c.conn.Send(ChannelHello, HelloData{Name: name, PID: os.Getpid()})
}

// Call invokes a host command and waits for its value. Calls without a
// context deadline time out after the client's call timeout.
func (c *Client) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	replyID := NewReplyID()
	msg, err := NewMessage(ChannelRemoteCall, append([]any{method, replyID}, args...)...)
	if err != nil {
		return nil, err
	}

	reply, err := c.conn.RoundTrip(ctx, replyID, msg)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) {
			remote.Method = method
		}
		return nil, err
	}
	if len(reply.Args) == 0 {
		return nil, nil
	}
	return reply.Args[0], nil
}

// Invoke runs a host command without waiting for, or asking for, a reply.
func (c *Client) Invoke(method string, args ...any) error {
	return c.conn.Send(ChannelRemoteCall, append([]any{method, ""}, args...)...)
}

// Subscribe asks the host to forward eventName to this window. The returned
// id is needed to unsubscribe.
func (c *Client) Subscribe(eventName string, fn EventHandler) (string, error) {
	eventID := "evt-" + NewReplyID()

	c.mu.Lock()
	c.events[eventID] = fn
	c.mu.Unlock()

	if err := c.conn.Send(ChannelRemoteSubscribe, eventID, eventName); err != nil {
		c.mu.Lock()
		delete(c.events, eventID)
		c.mu.Unlock()
		return "", err
	}
	return eventID, nil
}

// Unsubscribe stops forwarding for eventID.
func (c *Client) Unsubscribe(eventID string) error {
	c.mu.Lock()
	delete(c.events, eventID)
	c.mu.Unlock()
	return c.conn.Send(ChannelRemoteUnsubscribe, eventID)
}

// Emit fires eventName on the host EventBus.
func (c *Client) Emit(eventName string, args ...any) error {
	return c.conn.Send(ChannelRemoteEmit, append([]any{eventName}, args...)...)
}

// SendTo delivers eventName directly to another window.
func (c *Client) SendTo(window, eventName string, args ...any) error {
	return c.conn.Send(ChannelRemoteSend, append([]any{window, eventName}, args...)...)
}

// Ready reports renderer initialization, merging config into the host's
// application config.
func (c *Client) Ready(config any, windowName string) error {
	return c.conn.Send(ChannelAppReady, config, windowName)
}

// Quit asks the host to quit the application.
func (c *Client) Quit() error {
	return c.conn.Send(ChannelQuit)
}

// Reply answers a host request such as a dialog.
func (c *Client) Reply(replyID string, value any) error {
	return c.conn.Reply(replyID, value)
}

// Send writes a raw control message to the host.
func (c *Client) Send(channel string, args ...any) error {
	return c.conn.Send(channel, args...)
}

// Done is closed when the host connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

// Close closes the host connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

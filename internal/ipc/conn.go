package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// ErrClosed is returned for sends on, and requests pending on, a closed connection.
var ErrClosed = errors.New("connection closed")

// RemoteError is a failure reported by the other side of a request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Method, e.Message)
}

// NewReplyID returns a fresh reply channel id. IDs are ULIDs, so they sort by
// creation time and never repeat within a process.
func NewReplyID() string {
	return ulid.Make().String()
}

// Conn is one persistent host<->window connection. Writes are serialized, so
// messages sent on a Conn arrive in the order they were sent.
type Conn struct {
	raw          net.Conn
	logger       *logging.Logger
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	name    string
	pending map[string]chan *Message
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewConn wraps raw. The caller must run Serve to receive messages.
func NewConn(raw net.Conn, logger *logging.Logger) *Conn {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Conn{
		raw:          raw,
		logger:       logger,
		writeTimeout: constants.WriteTimeout,
		pending:      make(map[string]chan *Message),
		done:         make(chan struct{}),
	}
}

// Name returns the window name announced in the hello message ("" before hello).
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName records the window name for this connection.
func (c *Conn) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// Send encodes args and writes one message on channel.
func (c *Conn) Send(channel string, args ...any) error {
	msg, err := NewMessage(channel, args...)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// SendMessage writes msg followed by the newline delimiter.
func (c *Conn) SendMessage(msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Channel, err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if c.writeTimeout > 0 {
		c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.raw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", msg.Channel, err)
	}
	return nil
}

// Reply answers a request on replyID. An empty replyID means the caller did
// not ask for an answer, and nothing is sent.
func (c *Conn) Reply(replyID string, value any) error {
	if replyID == "" {
		return nil
	}
	return c.Send(replyID, value)
}

// ReplyError answers a request on replyID with an error.
func (c *Conn) ReplyError(replyID string, err error) error {
	if replyID == "" {
		return nil
	}
	return c.SendMessage(&Message{Channel: replyID, Error: err.Error()})
}

// Request sends channel(replyID, args...) and waits for the answer.
func (c *Conn) Request(ctx context.Context, channel string, args ...any) (*Message, error) {
	replyID := NewReplyID()
	msg, err := NewMessage(channel, append([]any{replyID}, args...)...)
	if err != nil {
		return nil, err
	}
	return c.RoundTrip(ctx, replyID, msg)
}

// RoundTrip sends msg and waits for a message on replyID. A reply carrying an
// error is returned together with a *RemoteError.
func (c *Conn) RoundTrip(ctx context.Context, replyID string, msg *Message) (*Message, error) {
	ch := c.expect(replyID)
	if ch == nil {
		return nil, ErrClosed
	}

	if err := c.SendMessage(msg); err != nil {
		c.forget(replyID)
		return nil, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if reply.Error != "" {
			return reply, &RemoteError{Method: msg.Channel, Message: reply.Error}
		}
		return reply, nil
	case <-ctx.Done():
		c.forget(replyID)
		return nil, ctx.Err()
	}
}

func (c *Conn) expect(replyID string) chan *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	ch := make(chan *Message, 1)
	c.pending[replyID] = ch
	return ch
}

func (c *Conn) forget(replyID string) {
	c.mu.Lock()
	delete(c.pending, replyID)
	c.mu.Unlock()
}

// deliver hands msg to a waiting request, if any.
func (c *Conn) deliver(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.pending[msg.Channel]
	if ok {
		delete(c.pending, msg.Channel)
		ch <- msg // buffered, never blocks
	}
	return ok
}

// Serve reads messages until the connection closes. Replies to pending
// requests are routed to their waiters; everything else goes to handle, one
// message at a time in arrival order. Returns nil on a clean EOF.
func (c *Conn) Serve(handle func(*Message)) error {
	defer c.Close()

	reader := bufio.NewReaderSize(c.raw, 64*1024)
	for {
		data, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) > 0 {
			msg, derr := DecodeMessage(data)
			if derr != nil {
				c.logger.Warn().Err(derr).Str("window", c.Name()).Msg("Failed to decode IPC message")
			} else if !c.deliver(msg) {
				handle(msg)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || c.isClosed() {
				return nil
			}
			return err
		}
	}
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection and fails all pending requests with ErrClosed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.raw.Close()

		c.mu.Lock()
		c.closed = true
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	})
	return err
}

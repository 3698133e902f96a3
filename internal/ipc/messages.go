// Package ipc carries messages between the host process and its window
// processes over one persistent, newline-delimited JSON connection per window
// (Unix domain socket, or a named pipe on Windows).
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Renderer-facing channels. Args are listed in order.
const (
	// ChannelQuit (window -> host): no args. Starts the quit sequence.
	ChannelQuit = "quit"

	// ChannelRemoteCall (window -> host): method, replyId, ...args.
	ChannelRemoteCall = "remote-call"

	// ChannelRemoteSend (window -> host): targetWindow, eventName, ...args.
	ChannelRemoteSend = "remote-send"

	// ChannelRemoteSubscribe (window -> host): eventId, eventName.
	ChannelRemoteSubscribe = "remote-subscribe"

	// ChannelRemoteUnsubscribe (window -> host): eventId.
	ChannelRemoteUnsubscribe = "remote-unsubscribe"

	// ChannelRemoteEmit (window -> host): eventName, ...args.
	ChannelRemoteEmit = "remote-emit"

	// ChannelAppReady (window -> host): config, windowName.
	ChannelAppReady = "app-ready"

	// ChannelOpenURL (host -> window): url.
	ChannelOpenURL = "open-url"

	// ChannelForceAppQuit (host -> window): reason. The window flushes its
	// state and decides whether to close itself.
	ChannelForceAppQuit = "force-app-quit"
)

// Control channels used by the process model.
const (
	// ChannelHello (window -> host): HelloData. Sent once per connection when
	// the window has finished loading.
	ChannelHello = "hello"

	// ChannelCloseRequest (window -> host): no args. The user asked to close.
	ChannelCloseRequest = "close-request"

	// ChannelWindowState (window -> host): WindowStateData.
	ChannelWindowState = "window-state"

	// ChannelSecondInstance (second instance -> host): SecondInstanceData.
	ChannelSecondInstance = "second-instance"

	// Host -> window native operations.
	ChannelWindowShow    = "window-show"
	ChannelWindowHide    = "window-hide"
	ChannelWindowFocus   = "window-focus"
	ChannelWindowRestore = "window-restore"
	ChannelWindowClose   = "window-close"
	ChannelWindowReload  = "window-reload"

	// ChannelDialog (host -> window): replyId, DialogData. Answered on
	// replyId with the chosen button index.
	ChannelDialog = "dialog"
)

// Message is one line on the wire. Replies travel on a channel named after the
// reply id the caller supplied; Error is set on replies that failed.
type Message struct {
	Channel string            `json:"channel"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// HelloData identifies a window process to the host.
type HelloData struct {
	Name string `json:"name"`
	PID  int    `json:"pid"`
}

// WindowStateData reports native window state changes.
type WindowStateData struct {
	Focused   bool `json:"focused"`
	Minimized bool `json:"minimized"`
	Visible   bool `json:"visible"`
}

// DialogData describes a modal message box shown by a window process.
type DialogData struct {
	Type      string   `json:"type,omitempty"`
	Title     string   `json:"title,omitempty"`
	Message   string   `json:"message"`
	Buttons   []string `json:"buttons"`
	DefaultID int      `json:"default_id"`
	CancelID  int      `json:"cancel_id"`
}

// SecondInstanceData is forwarded by a launch that found the host running.
type SecondInstanceData struct {
	Args       []string `json:"args"`
	WorkingDir string   `json:"working_dir,omitempty"`
}

// QuitTaskExecFile runs File with Args, detached from the host.
const QuitTaskExecFile = "execFile"

// QuitTaskData is the optional argument of quit: a program to start once the
// windows are closed, e.g. an update installer.
type QuitTaskData struct {
	Type string   `json:"type"`
	File string   `json:"file"`
	Args []string `json:"args,omitempty"`
}

// Message decoding errors
var (
	ErrMissingArg  = errors.New("missing argument")
	ErrInvalidArg  = errors.New("invalid argument")
	ErrEmptyPacket = errors.New("empty message")
)

// NewMessage builds a message, JSON-encoding each arg. json.RawMessage args
// are passed through untouched.
func NewMessage(channel string, args ...any) (*Message, error) {
	msg := &Message{Channel: channel}
	if len(args) == 0 {
		return msg, nil
	}
	msg.Args = make([]json.RawMessage, len(args))
	for i, arg := range args {
		raw, err := encodeArg(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode arg %d for %s: %w", i, channel, err)
		}
		msg.Args[i] = raw
	}
	return msg, nil
}

func encodeArg(arg any) (json.RawMessage, error) {
	switch v := arg.(type) {
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("null"), nil
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// Encode serializes the message to JSON without the trailing delimiter.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses one line from the wire.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Channel == "" {
		return nil, ErrEmptyPacket
	}
	return &msg, nil
}

// Arg decodes argument i into v.
func (m *Message) Arg(i int, v any) error {
	if i >= len(m.Args) {
		return fmt.Errorf("%w %d on %s", ErrMissingArg, i, m.Channel)
	}
	if err := json.Unmarshal(m.Args[i], v); err != nil {
		return fmt.Errorf("%w %d on %s: %v", ErrInvalidArg, i, m.Channel, err)
	}
	return nil
}

// StringArg decodes argument i as a string.
func (m *Message) StringArg(i int) (string, error) {
	var s string
	err := m.Arg(i, &s)
	return s, err
}

// Rest returns the raw arguments from index i on (nil if none).
func (m *Message) Rest(i int) []json.RawMessage {
	if i >= len(m.Args) {
		return nil
	}
	return m.Args[i:]
}

// RawArgs converts raw arguments to a slice suitable for variadic sends.
func RawArgs(raw []json.RawMessage) []any {
	out := make([]any, len(raw))
	for i, r := range raw {
		out[i] = r
	}
	return out
}

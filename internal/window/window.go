// Package window owns the logical lifecycle of application windows: naming,
// state, close confirmation, crash recovery, and quit sequencing. Native
// windows live in separate processes and are driven through Platform.
package window

import (
	"errors"
	"fmt"
)

// State is a window's lifecycle state.
type State int

const (
	StateCreating State = iota
	StateLoading
	StateVisible
	StateHidden
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateLoading:
		return "loading"
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateCreating; st <= StateClosed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown window state %q", text)
}

// Window errors
var (
	ErrWindowExists   = errors.New("window already exists")
	ErrWindowNotFound = errors.New("window not found")
	ErrQuitting       = errors.New("application is quitting")
	ErrInvalidName    = errors.New("invalid window name")
)

// Options configure a new window. Zero sizes mean "use the platform default".
type Options struct {
	URL       string `json:"url,omitempty"`
	HashRoute string `json:"hashRoute,omitempty"`
	Title     string `json:"title,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	MinWidth  int    `json:"minWidth,omitempty"`
	MinHeight int    `json:"minHeight,omitempty"`
	Resizable bool   `json:"resizable,omitempty"`
	Debug     bool   `json:"debug,omitempty"`

	// Hidden keeps the window hidden after load instead of showing and
	// focusing it.
	Hidden bool `json:"hidden,omitempty"`

	// Main overrides the "first window is main" rule.
	Main *bool `json:"main,omitempty"`

	OnLoad   func(name string) `json:"-"`
	OnClosed func(name string) `json:"-"`
}

// Prompt is a modal message box with buttons. Answers are button indexes;
// -1 means the prompt could not be shown or was dismissed.
type Prompt struct {
	Type      string
	Title     string
	Message   string
	Buttons   []string
	DefaultID int
	CancelID  int
}

// Native is the platform side of one window.
type Native interface {
	Show() error
	Hide() error
	Focus() error
	Restore() error
	Close() error
	Reload() error

	// Send delivers a message to the window's renderer.
	Send(channel string, args ...any) error

	// Confirm shows p and calls answer exactly once, from any goroutine.
	Confirm(p Prompt, answer func(choice int))
}

// Platform creates native windows and owns process-wide native resources.
type Platform interface {
	Open(name string, opts Options) (Native, error)
	UnregisterHotkeys()
	Exit()
}

// QuitTask is a successor process started during quit, e.g. an installer.
type QuitTask interface {
	Start() error
	Release() error
}

// Info is a read-only snapshot of a window.
type Info struct {
	Name           string `json:"name"`
	State          State  `json:"state"`
	IsMain         bool   `json:"isMain"`
	MarkedForClose bool   `json:"markedForClose"`
	Focused        bool   `json:"focused"`
	Minimized      bool   `json:"minimized"`
}

var (
	closePrompt = Prompt{
		Type:      "question",
		Message:   "Are you sure you want to exit?",
		Buttons:   []string{"Exit", "Cancel"},
		DefaultID: 0,
		CancelID:  1,
	}
	crashPrompt = Prompt{
		Type:      "error",
		Title:     "Renderer process crashed.",
		Message:   "The renderer process has been crashed, you can reload or close it.",
		Buttons:   []string{"Reload", "Close"},
		DefaultID: 0,
		CancelID:  1,
	}
	createWindowPrompt = Prompt{
		Type:      "question",
		Message:   "The application is already running. Open another window?",
		Buttons:   []string{"Confirm", "Cancel"},
		DefaultID: 0,
		CancelID:  1,
	}
)

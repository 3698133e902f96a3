// Package router dispatches remote calls from window processes to a fixed
// table of typed host commands and sends their results back.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Command names a host operation callable from a window.
type Command string

// Host commands
const (
	CmdCreateWindow           Command = "createWindow"
	CmdCreateAppWindow        Command = "createAppWindow"
	CmdCloseWindow            Command = "closeWindow"
	CmdHideWindow             Command = "hideWindow"
	CmdShowAndFocusWindow     Command = "showAndFocusWindow"
	CmdOpenOrCreateWindow     Command = "openOrCreateWindow"
	CmdConfirmCreateAppWindow Command = "confirmCreateAppWindow"
	CmdSendToWindow           Command = "sendToWindow"
	CmdSendToWindows          Command = "sendToWindows"
	CmdTrayTooltip            Command = "trayTooltip"
	CmdTrayIconTitle          Command = "trayIconTitle"
	CmdFlashTrayIcon          Command = "flashTrayIcon"
	CmdQuit                   Command = "quit"

	// Queries
	CmdEntryPath   Command = "entryPath"
	CmdAppConfig   Command = "appConfig"
	CmdWindows     Command = "windows"
	CmdWindowState Command = "windowState"
	CmdVersion     Command = "version"
)

// Router errors
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgs        = errors.New("invalid arguments")
	ErrNoResult       = errors.New("no result")
)

type resultKind int

const (
	kindVoid resultKind = iota
	kindValue
	kindAsync
)

// Result is what a command handler produces.
type Result struct {
	kind   resultKind
	value  any
	future *Future
}

// Value is a result replied immediately.
func Value(v any) Result { return Result{kind: kindValue, value: v} }

// Void is a result that is never replied to.
func Void() Result { return Result{kind: kindVoid} }

// Async is a result replied once f completes.
func Async(f *Future) Result { return Result{kind: kindAsync, future: f} }

// Handler implements one command.
type Handler func(ctx context.Context, args Args) (Result, error)

// Spec binds a handler to its reply policy.
type Spec struct {
	Handler Handler

	// NoReply commands never answer, even on error. Used for quit.
	NoReply bool
}

// Args are the raw JSON arguments of a call.
type Args []json.RawMessage

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Decode unmarshals argument i into v. Missing or null arguments leave v
// untouched.
func (a Args) Decode(i int, v any) error {
	if i >= len(a) || string(a[i]) == "null" {
		return nil
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("%w: argument %d: %v", ErrBadArgs, i, err)
	}
	return nil
}

// String returns argument i as a string, or def when absent.
func (a Args) String(i int, def string) (string, error) {
	s := def
	err := a.Decode(i, &s)
	return s, err
}

// Bool returns argument i as a bool, or def when absent.
func (a Args) Bool(i int, def bool) (bool, error) {
	b := def
	err := a.Decode(i, &b)
	return b, err
}

// RequireString returns argument i as a non-empty string.
func (a Args) RequireString(i int, name string) (string, error) {
	s, err := a.String(i, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrBadArgs, name)
	}
	return s, nil
}

// From returns the arguments from index i on.
func (a Args) From(i int) Args {
	if i >= len(a) {
		return nil
	}
	return a[i:]
}

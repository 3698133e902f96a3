// Package constants holds timing, geometry, and naming values shared by the
// host process and its window processes.
package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for config/log directories and the single-instance lock.
	AppName = "xuanxuan"

	// AppID is the Fyne application id used by window processes.
	AppID = "com.easysoft.xuanxuan"

	// MainWindowName - name given to the first application window.
	// Further app windows are named main-0, main-1, ...
	MainWindowName = "main"
)

// Window lifecycle timings
const (
	// CloseConfirmDebounce - a second close request for the same window within
	// this interval is treated as a deliberate quit instead of a new prompt.
	CloseConfirmDebounce = 1000 * time.Millisecond

	// QuitTaskGrace - time a successor process gets to start during quit
	// before it is detached and the host exits.
	QuitTaskGrace = 2000 * time.Millisecond

	// WindowShutdownTimeout - how long the host waits for window processes to
	// exit on their own after quit before killing them.
	WindowShutdownTimeout = 5 * time.Second
)

// Default application window geometry
const (
	DefaultWindowWidth     = 900
	DefaultWindowHeight    = 650
	DefaultWindowMinWidth  = 400
	DefaultWindowMinHeight = 650
)

// Tray
const (
	// TrayFlashInterval - period of the two-frame tray flash animation.
	TrayFlashInterval = 400 * time.Millisecond

	DefaultTrayTooltip = "Xuanxuan"
)

// IPC
const (
	// DefaultCallTimeout - applied to remote calls whose context has no deadline.
	DefaultCallTimeout = 30 * time.Second

	// WriteTimeout bounds a single message write on a window connection.
	WriteTimeout = 10 * time.Second

	// DialTimeout - window processes and second instances connecting to the host.
	DialTimeout = 5 * time.Second

	// MaxPendingSends - messages queued for a window that has not said hello yet.
	MaxPendingSends = 256
)

// Package launcher runs each window in its own process and exposes it to the
// window manager as a window.Platform. A window process connects back to the
// host over IPC and says hello; until then, messages for it are queued.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/logging"
	"github.com/easysoft/xuanxuan-host/internal/window"
)

// Launcher errors
var (
	ErrUnknownWindow = errors.New("no such window")
	ErrWindowGone    = errors.New("window process is gone")
	ErrQueueFull     = errors.New("window send queue is full")
)

// Notifier receives window process exits.
type Notifier interface {
	NotifyClosed(name string)
	NotifyCrashed(name, reason string)
}

// Options configure a Launcher.
type Options struct {
	// Spawn starts window processes. When nil, windows are expected to
	// connect on their own and a dropped connection counts as an exit.
	Spawn      SpawnFunc
	Logger     *logging.Logger
	MaxPending int
}

// Launcher implements window.Platform on top of window processes.
type Launcher struct {
	spawn      SpawnFunc
	logger     *logging.Logger
	maxPending int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	notifier Notifier
	windows  map[string]*nativeWindow

	watchers sync.WaitGroup
	exitOnce sync.Once
	done     chan struct{}
}

var _ window.Platform = (*Launcher)(nil)

// New creates a launcher.
func New(opts Options) *Launcher {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = constants.MaxPendingSends
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Launcher{
		spawn:      opts.Spawn,
		logger:     opts.Logger,
		maxPending: opts.MaxPending,
		ctx:        ctx,
		cancel:     cancel,
		windows:    make(map[string]*nativeWindow),
		done:       make(chan struct{}),
	}
}

// SetNotifier sets who hears about window exits. Must be called before the
// first Open.
func (l *Launcher) SetNotifier(n Notifier) {
	l.mu.Lock()
	l.notifier = n
	l.mu.Unlock()
}

// Open starts the process for window name.
func (l *Launcher) Open(name string, opts window.Options) (window.Native, error) {
	l.mu.Lock()
	if w, ok := l.windows[name]; ok && !w.exited {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", window.ErrWindowExists, name)
	}
	w := &nativeWindow{
		l:       l,
		name:    name,
		opts:    opts,
		changed: make(chan struct{}),
	}
	l.windows[name] = w
	l.mu.Unlock()

	if err := w.start(); err != nil {
		l.mu.Lock()
		l.removeLocked(w)
		l.mu.Unlock()
		return nil, err
	}
	return w, nil
}

// Attach binds a connection that said hello as name. Messages queued for the
// window are flushed in order before Attach returns.
func (l *Launcher) Attach(conn *ipc.Conn, name string) error {
	l.mu.Lock()
	w, ok := l.windows[name]
	if !ok || (w.exited && l.spawn != nil) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownWindow, name)
	}
	l.mu.Unlock()

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	l.mu.Lock()
	old := w.conn
	w.conn = conn
	w.exited = false
	pending := w.pending
	w.pending = nil
	w.notifyLocked()
	l.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
	}

	for _, msg := range pending {
		if err := conn.SendMessage(msg); err != nil {
			l.logger.Warn().Err(err).Str("window", name).Str("channel", msg.Channel).Msg("Failed to flush queued message")
			break
		}
	}
	l.logger.Debug().Str("window", name).Int("flushed", len(pending)).Msg("Window attached")
	return nil
}

// Detach forgets a connection that went away. Without a spawner the window
// is considered exited.
func (l *Launcher) Detach(conn *ipc.Conn) {
	l.mu.Lock()
	var w *nativeWindow
	for _, candidate := range l.windows {
		if candidate.conn == conn {
			w = candidate
			break
		}
	}
	if w == nil {
		l.mu.Unlock()
		return
	}
	w.conn = nil
	exited := w.proc == nil && l.spawn == nil
	closing := w.closing
	if exited {
		w.exited = true
		if closing {
			l.removeLocked(w)
		}
	}
	w.notifyLocked()
	l.mu.Unlock()

	if exited {
		l.report(w.name, closing, "connection lost")
	}
}

func (l *Launcher) watch(w *nativeWindow, proc Process) {
	defer l.watchers.Done()

	err := proc.Wait()

	l.mu.Lock()
	if w.proc != proc {
		l.mu.Unlock()
		return
	}
	w.proc = nil
	w.exited = true
	conn := w.conn
	w.conn = nil
	w.pending = nil
	closed := w.closing || err == nil
	if closed {
		l.removeLocked(w)
	}
	w.notifyLocked()
	l.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	reason := "exited"
	if err != nil {
		reason = err.Error()
	}
	l.report(w.name, closed, reason)
}

func (l *Launcher) report(name string, closed bool, reason string) {
	l.mu.Lock()
	n := l.notifier
	l.mu.Unlock()

	if closed {
		l.logger.Debug().Str("window", name).Msg("Window process exited")
	} else {
		l.logger.Warn().Str("window", name).Str("reason", reason).Msg("Window process exited unexpectedly")
	}
	if n == nil {
		return
	}
	if closed {
		n.NotifyClosed(name)
	} else {
		n.NotifyCrashed(name, reason)
	}
}

func (l *Launcher) removeLocked(w *nativeWindow) {
	if l.windows[w.name] == w {
		delete(l.windows, w.name)
	}
}

// otherConn returns a live connection of a window other than except.
func (l *Launcher) otherConn(except *nativeWindow) *ipc.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.windows {
		if w != except && w.conn != nil {
			return w.conn
		}
	}
	return nil
}

// UnregisterHotkeys implements window.Platform. Window processes bind no
// global hotkeys, so there is nothing to release.
func (l *Launcher) UnregisterHotkeys() {}

// Exit ends the host run loop. Pending prompts are abandoned.
func (l *Launcher) Exit() {
	l.exitOnce.Do(func() {
		l.logger.Info().Msg("Host exit requested")
		l.cancel()
		close(l.done)
	})
}

// Done is closed by Exit.
func (l *Launcher) Done() <-chan struct{} {
	return l.done
}

// Shutdown waits up to timeout for window processes to exit, then kills
// whatever is left.
func (l *Launcher) Shutdown(timeout time.Duration) {
	finished := make(chan struct{})
	go func() {
		l.watchers.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return
	case <-time.After(timeout):
	}

	l.mu.Lock()
	var procs []Process
	for _, w := range l.windows {
		if w.proc != nil {
			procs = append(procs, w.proc)
		}
	}
	l.mu.Unlock()

	for _, p := range procs {
		l.logger.Warn().Int("pid", p.Pid()).Msg("Killing window process after shutdown timeout")
		_ = p.Kill()
	}
	<-finished
}

// Len returns the number of windows the launcher tracks.
func (l *Launcher) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

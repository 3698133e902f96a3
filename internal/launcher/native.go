package launcher

import (
	"sync"

	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/window"
)

// nativeWindow is one window process as seen from the host. Fields below
// sendMu are guarded by the launcher's mu.
type nativeWindow struct {
	l    *Launcher
	name string
	opts window.Options

	// sendMu keeps queued and direct sends in order across Attach.
	sendMu sync.Mutex

	proc    Process
	conn    *ipc.Conn
	pending []*ipc.Message
	closing bool
	exited  bool
	changed chan struct{}
}

var _ window.Native = (*nativeWindow)(nil)

// notifyLocked wakes goroutines waiting for a connection change.
func (w *nativeWindow) notifyLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}

func (w *nativeWindow) start() error {
	l := w.l
	if l.spawn == nil {
		return nil
	}
	proc, err := l.spawn(w.name, w.opts)
	if err != nil {
		return err
	}

	l.mu.Lock()
	w.proc = proc
	w.exited = false
	w.notifyLocked()
	l.mu.Unlock()

	l.logger.Info().Str("window", w.name).Int("pid", proc.Pid()).Msg("Window process started")
	l.watchers.Add(1)
	go l.watch(w, proc)
	return nil
}

func (w *nativeWindow) Show() error    { return w.Send(ipc.ChannelWindowShow) }
func (w *nativeWindow) Hide() error    { return w.Send(ipc.ChannelWindowHide) }
func (w *nativeWindow) Focus() error   { return w.Send(ipc.ChannelWindowFocus) }
func (w *nativeWindow) Restore() error { return w.Send(ipc.ChannelWindowRestore) }

// Close asks the window process to close itself. A window that is not
// connected is killed; one that is already gone is reported closed at once.
func (w *nativeWindow) Close() error {
	l := w.l
	l.mu.Lock()
	w.closing = true
	conn, proc := w.conn, w.proc
	gone := w.exited || (conn == nil && proc == nil)
	if gone {
		w.exited = true
		l.removeLocked(w)
		w.notifyLocked()
	}
	l.mu.Unlock()

	switch {
	case gone:
		l.report(w.name, true, "closed")
		return nil
	case conn != nil:
		err := conn.Send(ipc.ChannelWindowClose)
		if err != nil && proc != nil {
			return proc.Kill()
		}
		return err
	default:
		return proc.Kill()
	}
}

// Reload reloads the window content, or starts a new process if the old one
// died.
func (w *nativeWindow) Reload() error {
	l := w.l
	l.mu.Lock()
	conn, exited := w.conn, w.exited
	l.mu.Unlock()

	if conn != nil {
		return conn.Send(ipc.ChannelWindowReload)
	}
	if !exited {
		return w.Send(ipc.ChannelWindowReload)
	}
	if l.spawn == nil {
		return ErrWindowGone
	}
	l.logger.Info().Str("window", w.name).Msg("Restarting window process")
	return w.start()
}

// Send delivers a message to the window, queueing it until the window
// connects.
func (w *nativeWindow) Send(channel string, args ...any) error {
	msg, err := ipc.NewMessage(channel, args...)
	if err != nil {
		return err
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	l := w.l
	l.mu.Lock()
	conn := w.conn
	if conn == nil {
		defer l.mu.Unlock()
		if w.exited {
			return ErrWindowGone
		}
		if len(w.pending) >= l.maxPending {
			return ErrQueueFull
		}
		w.pending = append(w.pending, msg)
		return nil
	}
	l.mu.Unlock()

	return conn.SendMessage(msg)
}

// Confirm shows p in this window once it is connected. A window that is gone
// borrows another window's connection; with none left, the default button is
// chosen.
func (w *nativeWindow) Confirm(p window.Prompt, answer func(choice int)) {
	go func() {
		conn := w.waitConn()
		if conn == nil {
			conn = w.l.otherConn(w)
		}
		if conn == nil {
			w.l.logger.Warn().Str("window", w.name).Str("prompt", p.Message).Msg("No window can show prompt, using default answer")
			answer(p.DefaultID)
			return
		}

		reply, err := conn.Request(w.l.ctx, ipc.ChannelDialog, ipc.DialogData{
			Type:      p.Type,
			Title:     p.Title,
			Message:   p.Message,
			Buttons:   p.Buttons,
			DefaultID: p.DefaultID,
			CancelID:  p.CancelID,
		})
		if err != nil {
			w.l.logger.Debug().Err(err).Str("window", w.name).Msg("Prompt failed")
			answer(-1)
			return
		}

		choice := -1
		if err := reply.Arg(0, &choice); err != nil {
			choice = -1
		}
		answer(choice)
	}()
}

// waitConn blocks until the window is connected. Returns nil if the window
// exits first or the launcher is done.
func (w *nativeWindow) waitConn() *ipc.Conn {
	l := w.l
	for {
		l.mu.Lock()
		conn, exited, changed := w.conn, w.exited, w.changed
		l.mu.Unlock()

		if conn != nil {
			return conn
		}
		if exited {
			return nil
		}
		select {
		case <-changed:
		case <-l.done:
			return nil
		}
	}
}

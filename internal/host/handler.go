package host

import (
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/router"
	"github.com/easysoft/xuanxuan-host/internal/tray"
)

// HandleMessage implements ipc.ConnHandler.
func (h *Host) HandleMessage(c *ipc.Conn, msg *ipc.Message) {
	switch msg.Channel {
	case ipc.ChannelHello:
		h.handleHello(c, msg)

	case ipc.ChannelQuit:
		task, err := h.quitTask(router.Args(msg.Args))
		if err != nil {
			h.logger.Warn().Err(err).Str("window", c.Name()).Msg("Rejected quit task")
			return
		}
		h.manager.Quit(task)

	case ipc.ChannelRemoteCall:
		method, err := msg.StringArg(0)
		if err != nil {
			h.logger.Warn().Err(err).Str("window", c.Name()).Msg("Malformed remote call")
			return
		}
		// A missing or non-string reply id means the caller wants no answer.
		replyID, _ := msg.StringArg(1)
		if h.cfg.Host.Debug {
			h.logger.Debug().Str("window", c.Name()).Str("method", method).Str("reply_id", replyID).Msg("Accept remote call")
		}
		h.router.Dispatch(h.ctx, c, method, replyID, router.Args(msg.Rest(2)))

	case ipc.ChannelRemoteSend:
		target, err1 := msg.StringArg(0)
		event, err2 := msg.StringArg(1)
		if err1 != nil || err2 != nil {
			h.logger.Warn().Str("window", c.Name()).Msg("Malformed remote send")
			return
		}
		if err := h.manager.SendToWindow(target, event, ipc.RawArgs(msg.Rest(2))...); err != nil {
			h.logger.Debug().Err(err).Str("target", target).Str("event", event).Msg("Remote send dropped")
		}

	case ipc.ChannelRemoteSubscribe:
		eventID, err1 := msg.StringArg(0)
		event, err2 := msg.StringArg(1)
		if err1 != nil || err2 != nil || c.Name() == "" {
			h.logger.Warn().Str("window", c.Name()).Msg("Rejected remote subscribe")
			return
		}
		h.relay.Subscribe(eventID, event, c.Name())

	case ipc.ChannelRemoteUnsubscribe:
		eventID, err := msg.StringArg(0)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Malformed remote unsubscribe")
			return
		}
		h.relay.Unsubscribe(c.Name(), eventID)

	case ipc.ChannelRemoteEmit:
		event, err := msg.StringArg(0)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Malformed remote emit")
			return
		}
		h.relay.RelayEmit(event, ipc.RawArgs(msg.Rest(1))...)

	case ipc.ChannelAppReady:
		h.handleAppReady(c, msg)

	case ipc.ChannelSecondInstance:
		var data ipc.SecondInstanceData
		if err := msg.Arg(0, &data); err != nil {
			h.logger.Warn().Err(err).Msg("Malformed second-instance message")
		}
		h.manager.SecondInstance(data.Args)

	case ipc.ChannelCloseRequest:
		h.manager.NotifyCloseRequested(c.Name())

	case ipc.ChannelWindowState:
		var state ipc.WindowStateData
		if err := msg.Arg(0, &state); err != nil {
			h.logger.Warn().Err(err).Msg("Malformed window state")
			return
		}
		h.manager.NotifyFocus(c.Name(), state.Focused)
		h.manager.NotifyMinimized(c.Name(), state.Minimized)

	default:
		h.logger.Debug().Str("window", c.Name()).Str("channel", msg.Channel).Msg("Unhandled IPC channel")
	}
}

func (h *Host) handleHello(c *ipc.Conn, msg *ipc.Message) {
	var hello ipc.HelloData
	if err := msg.Arg(0, &hello); err != nil || hello.Name == "" {
		h.logger.Warn().Err(err).Msg("Malformed hello, closing connection")
		c.Close()
		return
	}

	c.SetName(hello.Name)
	if err := h.platform.Attach(c, hello.Name); err != nil {
		h.logger.Warn().Err(err).Str("window", hello.Name).Int("pid", hello.PID).Msg("Rejected window connection")
		c.Close()
		return
	}

	h.logger.Info().Str("window", hello.Name).Int("pid", hello.PID).Msg("Window connected")
	h.manager.NotifyLoaded(hello.Name)
}

func (h *Host) handleAppReady(c *ipc.Conn, msg *ipc.Message) {
	var cfg map[string]any
	if err := msg.Arg(0, &cfg); err != nil {
		h.logger.Warn().Err(err).Msg("Ignoring malformed app config")
	}
	h.mergeAppConfig(cfg)

	name, _ := msg.StringArg(1)
	if name == "" {
		name = c.Name()
	}
	if name == "" {
		return
	}

	err := h.tray.CreateTrayIcon(name, tray.Actions{
		Open: func() { h.manager.ShowAndFocusWindow(name) },
		Exit: func() {
			if err := h.manager.SendToWindow(name, ipc.ChannelForceAppQuit, "tray"); err != nil {
				h.logger.Warn().Err(err).Str("window", name).Msg("Failed to request quit from tray")
			}
		},
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("window", name).Msg("Tray icon unavailable")
	}
	h.logger.Info().Str("window", name).Msg("App ready")
}

// HandleDisconnect implements ipc.ConnHandler.
func (h *Host) HandleDisconnect(c *ipc.Conn) {
	if c.Name() != "" {
		h.logger.Debug().Str("window", c.Name()).Msg("Window disconnected")
	}
	h.platform.Detach(c)
}

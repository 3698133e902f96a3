package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/launcher"
	"github.com/easysoft/xuanxuan-host/internal/router"
	"github.com/easysoft/xuanxuan-host/internal/version"
	"github.com/easysoft/xuanxuan-host/internal/window"
)

// commands is the closed set of operations a window may call.
func (h *Host) commands() map[router.Command]router.Spec {
	m := h.manager
	return map[router.Command]router.Spec{
		router.CmdCreateWindow: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			name, err := args.RequireString(0, "name")
			if err != nil {
				return router.Result{}, err
			}
			var opts window.Options
			if err := args.Decode(1, &opts); err != nil {
				return router.Result{}, err
			}
			created, err := m.CreateWindow(name, opts)
			if err != nil {
				return router.Result{}, err
			}
			return router.Value(created), nil
		}},

		router.CmdCreateAppWindow: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			var opts *window.Options
			if err := args.Decode(0, &opts); err != nil {
				return router.Result{}, err
			}
			name, err := m.CreateAppWindow(opts)
			if err != nil {
				return router.Result{}, err
			}
			return router.Value(name), nil
		}},

		router.CmdCloseWindow: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			name, err := args.RequireString(0, "name")
			if err != nil {
				return router.Result{}, err
			}
			return router.Value(m.CloseWindow(name)), nil
		}},

		router.CmdHideWindow: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			name, err := args.String(0, constants.MainWindowName)
			if err != nil {
				return router.Result{}, err
			}
			return router.Value(m.HideWindow(name)), nil
		}},

		router.CmdShowAndFocusWindow: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			name, err := args.String(0, constants.MainWindowName)
			if err != nil {
				return router.Result{}, err
			}
			return router.Value(m.ShowAndFocusWindow(name)), nil
		}},

		router.CmdOpenOrCreateWindow: {Handler: func(context.Context, router.Args) (router.Result, error) {
			name, err := m.OpenOrCreateWindow()
			if err != nil {
				return router.Result{}, err
			}
			return router.Value(name), nil
		}},

		router.CmdConfirmCreateAppWindow: {Handler: func(context.Context, router.Args) (router.Result, error) {
			return router.Async(router.FromChannel(m.ConfirmCreateAppWindow())), nil
		}},

		router.CmdSendToWindow: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			name, err := args.RequireString(0, "name")
			if err != nil {
				return router.Result{}, err
			}
			channel, err := args.RequireString(1, "channel")
			if err != nil {
				return router.Result{}, err
			}
			if err := m.SendToWindow(name, channel, ipc.RawArgs(args.From(2))...); err != nil {
				return router.Result{}, err
			}
			return router.Void(), nil
		}},

		router.CmdSendToWindows: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			channel, err := args.RequireString(0, "channel")
			if err != nil {
				return router.Result{}, err
			}
			m.SendToWindows(channel, ipc.RawArgs(args.From(1))...)
			return router.Void(), nil
		}},

		router.CmdTrayTooltip: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			text, err := args.String(0, "")
			if err != nil {
				return router.Result{}, err
			}
			name, err := args.String(1, constants.MainWindowName)
			if err != nil {
				return router.Result{}, err
			}
			h.tray.TrayTooltip(text, name)
			return router.Void(), nil
		}},

		router.CmdTrayIconTitle: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			text, err := args.String(0, "")
			if err != nil {
				return router.Result{}, err
			}
			name, err := args.String(1, constants.MainWindowName)
			if err != nil {
				return router.Result{}, err
			}
			h.tray.TrayIconTitle(text, name)
			return router.Void(), nil
		}},

		router.CmdFlashTrayIcon: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			flash, err := args.Bool(0, true)
			if err != nil {
				return router.Result{}, err
			}
			name, err := args.String(1, constants.MainWindowName)
			if err != nil {
				return router.Result{}, err
			}
			h.tray.FlashTrayIcon(flash, name)
			return router.Void(), nil
		}},

		router.CmdQuit: {NoReply: true, Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			task, err := h.quitTask(args)
			if err != nil {
				return router.Result{}, err
			}
			m.Quit(task)
			return router.Void(), nil
		}},

		router.CmdEntryPath: {Handler: func(context.Context, router.Args) (router.Result, error) {
			return router.Value(h.cfg.Host.EntryPath), nil
		}},

		router.CmdAppConfig: {Handler: func(context.Context, router.Args) (router.Result, error) {
			return router.Value(h.AppConfig()), nil
		}},

		router.CmdWindows: {Handler: func(context.Context, router.Args) (router.Result, error) {
			return router.Value(m.Windows()), nil
		}},

		router.CmdWindowState: {Handler: func(_ context.Context, args router.Args) (router.Result, error) {
			name, err := args.String(0, constants.MainWindowName)
			if err != nil {
				return router.Result{}, err
			}
			info, ok := m.Window(name)
			if !ok {
				return router.Result{}, fmt.Errorf("%w: %s", window.ErrWindowNotFound, name)
			}
			return router.Value(info), nil
		}},

		router.CmdVersion: {Handler: func(context.Context, router.Args) (router.Result, error) {
			return router.Value(map[string]string{
				"version":   version.Version,
				"buildTime": version.BuildTime,
			}), nil
		}},
	}
}

// ErrUnsupportedQuitTask is returned for quit tasks other than execFile.
var ErrUnsupportedQuitTask = errors.New("unsupported quit task")

// quitTask decodes the optional successor task argument of quit.
func (h *Host) quitTask(args router.Args) (window.QuitTask, error) {
	var data ipc.QuitTaskData
	if err := args.Decode(0, &data); err != nil {
		return nil, err
	}
	if data.Type == "" && data.File == "" {
		return nil, nil
	}
	return h.newQuitTask(data)
}

func execQuitTask(data ipc.QuitTaskData) (window.QuitTask, error) {
	if data.Type != ipc.QuitTaskExecFile {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuitTask, data.Type)
	}
	if data.File == "" {
		return nil, fmt.Errorf("%w: execFile needs a file", router.ErrBadArgs)
	}
	return launcher.NewExecTask(data.File, data.Args), nil
}

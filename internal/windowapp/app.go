// Package windowapp is the runtime of a window process: one Fyne window
// driven by the host over IPC.
package windowapp

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/logging"
	"github.com/easysoft/xuanxuan-host/internal/window"
)

// Options configure a window process.
type Options struct {
	Name     string
	Endpoint string
	Window   window.Options
	Logger   *logging.Logger
}

// App is one window process.
type App struct {
	name   string
	opts   window.Options
	logger *logging.Logger
	client *ipc.Client

	fyneApp fyne.App
	win     fyne.Window

	mu      sync.Mutex
	state   ipc.WindowStateData
	ready   bool
	closing bool
}

// Run connects to the host, opens the window and blocks until the window
// closes or the host goes away.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("window")
	}
	if opts.Name == "" {
		return fmt.Errorf("window name is required")
	}

	client, err := ipc.Connect(ctx, opts.Endpoint, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	a := &App{
		name:    opts.Name,
		opts:    opts.Window,
		logger:  logger,
		client:  client,
		fyneApp: app.NewWithID(constants.AppID),
	}
	a.build()
	a.bind()

	go func() {
		if err := client.Run(); err != nil {
			logger.Warn().Err(err).Msg("Host connection failed")
		}
		logger.Info().Msg("Host connection closed, exiting")
		fyne.Do(a.fyneApp.Quit)
	}()

	a.fyneApp.Lifecycle().SetOnStarted(a.hello)
	a.fyneApp.Run()
	return nil
}

func (a *App) title() string {
	if a.opts.Title != "" {
		return a.opts.Title
	}
	return constants.AppName
}

func (a *App) build() {
	a.win = a.fyneApp.NewWindow(a.title())

	width, height := a.opts.Width, a.opts.Height
	if width <= 0 {
		width = constants.DefaultWindowWidth
	}
	if height <= 0 {
		height = constants.DefaultWindowHeight
	}
	a.win.Resize(fyne.NewSize(float32(width), float32(height)))
	a.win.SetFixedSize(!a.opts.Resizable)
	a.win.CenterOnScreen()
	a.win.SetContent(a.content())

	a.win.SetCloseIntercept(func() {
		a.mu.Lock()
		closing := a.closing
		a.mu.Unlock()
		if closing {
			a.win.Close()
			return
		}
		if err := a.client.Send(ipc.ChannelCloseRequest); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to send close request, closing locally")
			a.fyneApp.Quit()
		}
	})
	a.win.SetOnClosed(a.fyneApp.Quit)

	lc := a.fyneApp.Lifecycle()
	lc.SetOnEnteredForeground(func() { a.report(func(s *ipc.WindowStateData) { s.Focused = true }) })
	lc.SetOnExitedForeground(func() { a.report(func(s *ipc.WindowStateData) { s.Focused = false }) })
}

func (a *App) content() fyne.CanvasObject {
	heading := widget.NewLabelWithStyle(a.title(), fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	location := widget.NewLabelWithStyle(a.opts.URL, fyne.TextAlignCenter, fyne.TextStyle{Monospace: true})
	return container.NewCenter(container.NewVBox(heading, location))
}

// hello announces the window once the Fyne event loop is up.
func (a *App) hello() {
	if err := a.client.Hello(a.name); err != nil {
		a.logger.Error().Err(err).Msg("Failed to say hello to host")
		a.fyneApp.Quit()
	}
}

// bind registers the host -> window handlers. They run on the IPC read
// goroutine and hop to the UI thread with fyne.Do.
func (a *App) bind() {
	c := a.client

	c.On(ipc.ChannelWindowShow, func(*ipc.Message) {
		fyne.Do(func() {
			a.win.Show()
			a.report(func(s *ipc.WindowStateData) { s.Visible = true; s.Minimized = false })
			a.sendReady()
		})
	})
	c.On(ipc.ChannelWindowHide, func(*ipc.Message) {
		fyne.Do(func() {
			a.win.Hide()
			a.report(func(s *ipc.WindowStateData) { s.Visible = false })
		})
	})
	c.On(ipc.ChannelWindowFocus, func(*ipc.Message) {
		fyne.Do(a.win.RequestFocus)
	})
	c.On(ipc.ChannelWindowRestore, func(*ipc.Message) {
		fyne.Do(func() {
			a.win.Show()
			a.win.RequestFocus()
			a.report(func(s *ipc.WindowStateData) { s.Visible = true; s.Minimized = false })
		})
	})
	c.On(ipc.ChannelWindowClose, func(*ipc.Message) {
		a.mu.Lock()
		a.closing = true
		a.mu.Unlock()
		fyne.Do(a.win.Close)
	})
	c.On(ipc.ChannelWindowReload, func(*ipc.Message) {
		fyne.Do(func() {
			a.win.SetContent(a.content())
			a.mu.Lock()
			a.ready = false
			a.mu.Unlock()
			a.hello()
		})
	})
	c.On(ipc.ChannelDialog, a.handleDialog)
	c.On(ipc.ChannelOpenURL, func(msg *ipc.Message) {
		raw, err := msg.StringArg(0)
		if err != nil {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			a.logger.Warn().Err(err).Str("url", raw).Msg("Ignoring invalid URL")
			return
		}
		fyne.Do(func() {
			if err := a.fyneApp.OpenURL(u); err != nil {
				a.logger.Warn().Err(err).Str("url", raw).Msg("Failed to open URL")
			}
		})
	})
	c.On(ipc.ChannelForceAppQuit, func(msg *ipc.Message) {
		reason, _ := msg.StringArg(0)
		a.logger.Info().Str("reason", reason).Msg("Host requested quit")
		if err := c.Invoke("closeWindow", a.name); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to request window close")
		}
	})
}

// sendReady reports app-ready the first time the window is shown after a
// (re)load.
func (a *App) sendReady() {
	a.mu.Lock()
	if a.ready {
		a.mu.Unlock()
		return
	}
	a.ready = true
	a.mu.Unlock()

	cfg := map[string]any{
		"url":   a.opts.URL,
		"debug": a.opts.Debug,
	}
	if err := a.client.Ready(cfg, a.name); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to send app-ready")
	}
}

func (a *App) report(update func(*ipc.WindowStateData)) {
	a.mu.Lock()
	before := a.state
	update(&a.state)
	state := a.state
	a.mu.Unlock()

	if state == before {
		return
	}
	if err := a.client.Send(ipc.ChannelWindowState, state); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to report window state")
	}
}

func (a *App) handleDialog(msg *ipc.Message) {
	replyID, err := msg.StringArg(0)
	if err != nil {
		return
	}
	var data ipc.DialogData
	if err := msg.Arg(1, &data); err != nil {
		a.logger.Warn().Err(err).Msg("Malformed dialog request")
		_ = a.client.Reply(replyID, -1)
		return
	}

	fyne.Do(func() {
		var once sync.Once
		answer := func(choice int) {
			once.Do(func() {
				if err := a.client.Reply(replyID, choice); err != nil {
					a.logger.Warn().Err(err).Msg("Failed to answer dialog")
				}
			})
		}

		d := dialog.NewCustomWithoutButtons(promptTitle(data, a.title()), widget.NewLabel(data.Message), a.win)
		labels := promptButtons(data)
		buttons := make([]fyne.CanvasObject, len(labels))
		for i, label := range labels {
			choice := i
			b := widget.NewButton(label, func() {
				answer(choice)
				d.Hide()
			})
			if i == data.DefaultID {
				b.Importance = widget.HighImportance
			}
			buttons[i] = b
		}
		d.SetButtons(buttons)
		d.SetOnClosed(func() { answer(dismissChoice(data)) })

		// A borrowed prompt may land on a hidden window.
		a.win.Show()
		d.Show()
	})
}

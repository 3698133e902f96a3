// Package host wires the window manager, tray, remote call router and event
// relay to the IPC server that window processes connect to.
package host

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/easysoft/xuanxuan-host/internal/config"
	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/events"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/launcher"
	"github.com/easysoft/xuanxuan-host/internal/logging"
	"github.com/easysoft/xuanxuan-host/internal/relay"
	"github.com/easysoft/xuanxuan-host/internal/router"
	"github.com/easysoft/xuanxuan-host/internal/tray"
	"github.com/easysoft/xuanxuan-host/internal/window"
)

// Platform is the window platform plus the connection bookkeeping the host
// drives from IPC.
type Platform interface {
	window.Platform
	SetNotifier(n launcher.Notifier)
	Attach(conn *ipc.Conn, name string) error
	Detach(conn *ipc.Conn)
	Done() <-chan struct{}
	Shutdown(timeout time.Duration)
}

// Options configure a Host.
type Options struct {
	Config   *config.HostConfig
	Logger   *logging.Logger
	Platform Platform
	Tray     tray.Backend

	// NewQuitTask builds the successor task passed to quit. Defaults to
	// launcher.NewExecTask for execFile tasks.
	NewQuitTask func(ipc.QuitTaskData) (window.QuitTask, error)

	// Test hooks forwarded to the window manager.
	Debounce  time.Duration
	QuitGrace time.Duration
	Now       func() time.Time
	Sleep     func(time.Duration)
}

// Host is the application context: everything a window can reach goes
// through one Host.
type Host struct {
	cfg      *config.HostConfig
	logger   *logging.Logger
	platform Platform

	newQuitTask func(ipc.QuitTaskData) (window.QuitTask, error)

	bus     *events.EventBus
	manager *window.Manager
	tray    *tray.Controller
	router  *router.Router
	relay   *relay.Relay
	server  *ipc.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	appConfig map[string]any
}

// New builds a host. Nothing runs until Start.
func New(opts Options) (*Host, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("host: platform is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewHostConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		cfg:       cfg,
		logger:    logger,
		platform:  opts.Platform,
		ctx:       ctx,
		cancel:    cancel,
		appConfig: make(map[string]any),

		newQuitTask: opts.NewQuitTask,
	}
	if h.newQuitTask == nil {
		h.newQuitTask = execQuitTask
	}

	h.bus = events.NewEventBus(logger.Named("events"))
	h.bus.SetDebug(cfg.Host.Debug)

	h.manager = window.NewManager(window.ManagerOptions{
		Platform:    opts.Platform,
		Bus:         h.bus,
		Logger:      logger.Named("window"),
		AppDefaults: appWindowDefaults(cfg),
		Debounce:    opts.Debounce,
		QuitGrace:   opts.QuitGrace,
		Now:         opts.Now,
		Sleep:       opts.Sleep,
	})
	opts.Platform.SetNotifier(h.manager)

	h.tray = tray.NewController(tray.Options{
		Backend: opts.Tray,
		Logger:  logger.Named("tray"),
		Frames:  tray.LoadFrames(cfg.ResolvePath(cfg.Tray.Icon), cfg.ResolvePath(cfg.Tray.IconBlank)),
		Tooltip: cfg.Tray.Tooltip,
	})

	h.relay = relay.New(h.bus, h.manager, logger.Named("relay"))
	h.router = router.New(h.commands(), logger.Named("router"))
	h.server = ipc.NewServer(h, logger.Named("ipc"))

	h.bus.On(events.EventWindowClosed, func(args ...any) {
		name, _ := firstString(args)
		h.tray.RemoveTrayIcon(name)
		h.relay.UnsubscribeWindow(name)
	})
	h.bus.On(events.EventAppQuit, func(...any) {
		h.tray.Close()
	})

	return h, nil
}

func appWindowDefaults(cfg *config.HostConfig) window.Options {
	return window.Options{
		URL:       cfg.WindowURL(),
		Title:     constants.AppName,
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		MinWidth:  cfg.Window.MinWidth,
		MinHeight: cfg.Window.MinHeight,
		Resizable: true,
		Debug:     cfg.Host.Debug,
	}
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

// Start serves IPC on listener and opens the first app window.
func (h *Host) Start(listener net.Listener) error {
	h.server.Start(listener)

	name, err := h.manager.OpenOrCreateWindow()
	if err != nil {
		h.server.Stop()
		return fmt.Errorf("failed to open main window: %w", err)
	}
	h.logger.Info().Str("window", name).Msg("Host started")
	return nil
}

// Run blocks until the application quits or ctx is cancelled. Cancelling ctx
// runs the normal quit sequence.
func (h *Host) Run(ctx context.Context) {
	select {
	case <-h.platform.Done():
	case <-ctx.Done():
		h.logger.Info().Msg("Shutdown requested")
		h.manager.Quit(nil)
		<-h.platform.Done()
	}
}

// Stop tears down IPC and waits for window processes. A host that has not
// quit yet quits first.
func (h *Host) Stop() {
	h.manager.Quit(nil)
	h.cancel()
	h.server.Stop()
	h.platform.Shutdown(constants.WindowShutdownTimeout)
	h.router.Wait()
	h.tray.Close()
	h.bus.Close()
	h.logger.Info().Msg("Host stopped")
}

// Manager returns the window manager.
func (h *Host) Manager() *window.Manager { return h.manager }

// Bus returns the host event bus.
func (h *Host) Bus() *events.EventBus { return h.bus }

// Tray returns the tray controller.
func (h *Host) Tray() *tray.Controller { return h.tray }

// Relay returns the remote event relay.
func (h *Host) Relay() *relay.Relay { return h.relay }

// Server returns the IPC server.
func (h *Host) Server() *ipc.Server { return h.server }

// AppConfig returns a copy of the configuration merged from app-ready.
func (h *Host) AppConfig() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(h.appConfig))
	for k, v := range h.appConfig {
		out[k] = v
	}
	return out
}

func (h *Host) mergeAppConfig(cfg map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range cfg {
		h.appConfig[k] = v
	}
}

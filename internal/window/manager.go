package window

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/events"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// ManagerOptions configure a Manager. Zero durations and nil funcs get
// production defaults.
type ManagerOptions struct {
	Platform Platform
	Bus      *events.EventBus
	Logger   *logging.Logger

	// AppDefaults are applied to CreateAppWindow before caller options.
	AppDefaults Options

	Debounce  time.Duration
	QuitGrace time.Duration
	Now       func() time.Time
	Sleep     func(time.Duration)
}

// Manager creates, tracks, and closes windows. Registry mutations happen
// under mu; Native calls, listeners, and callbacks always run without it.
type Manager struct {
	platform    Platform
	bus         *events.EventBus
	logger      *logging.Logger
	appDefaults Options
	debounce    time.Duration
	quitGrace   time.Duration
	now         func() time.Time
	sleep       func(time.Duration)

	mu                    sync.Mutex
	registry              *Registry
	appWindowIndex        int
	lastFocused           string
	pendingSecondInstance bool

	quitting atomic.Bool
}

// NewManager creates a window manager on top of a platform.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		platform:    opts.Platform,
		bus:         opts.Bus,
		logger:      opts.Logger,
		appDefaults: opts.AppDefaults,
		debounce:    opts.Debounce,
		quitGrace:   opts.QuitGrace,
		now:         opts.Now,
		sleep:       opts.Sleep,
		registry:    NewRegistry(),
	}
	if m.bus == nil {
		m.bus = events.NewEventBus(nil)
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	if m.debounce == 0 {
		m.debounce = constants.CloseConfirmDebounce
	}
	if m.quitGrace == 0 {
		m.quitGrace = constants.QuitTaskGrace
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	return m
}

// CreateWindow opens a new window named name. The first window created while
// no main window exists becomes the main window unless opts.Main says otherwise.
func (m *Manager) CreateWindow(name string, opts Options) (string, error) {
	m.mu.Lock()
	h, err := m.reserveLocked(name, opts)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	return name, m.open(h)
}

// CreateAppWindow opens an application window with the app defaults. The
// first is named "main", later ones "main-0", "main-1", and so on.
func (m *Manager) CreateAppWindow(opts *Options) (string, error) {
	merged := m.appDefaults
	if opts != nil {
		merged = mergeOptions(merged, *opts)
	}

	m.mu.Lock()
	name := constants.MainWindowName
	if _, ok := m.registry.Main(); ok {
		name = fmt.Sprintf("%s-%d", constants.MainWindowName, m.appWindowIndex)
		m.appWindowIndex++
	}
	h, err := m.reserveLocked(name, merged)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	return name, m.open(h)
}

func (m *Manager) reserveLocked(name string, opts Options) (*Handle, error) {
	if m.quitting.Load() {
		return nil, ErrQuitting
	}
	if name == "" {
		return nil, ErrInvalidName
	}

	_, hasMain := m.registry.Main()
	isMain := !hasMain
	if opts.Main != nil {
		isMain = *opts.Main
	}

	h := &Handle{
		Name:    name,
		State:   StateCreating,
		IsMain:  isMain,
		Options: opts,
	}
	if err := m.registry.Add(h); err != nil {
		return nil, fmt.Errorf("%w: %s", err, name)
	}
	return h, nil
}

func (m *Manager) open(h *Handle) error {
	native, err := m.platform.Open(h.Name, h.Options)

	m.mu.Lock()
	if err != nil {
		m.registry.Remove(h.Name)
		m.mu.Unlock()
		return fmt.Errorf("failed to open window %s: %w", h.Name, err)
	}
	h.Native = native
	if h.State == StateCreating {
		h.State = StateLoading
	}
	loadedEarly := h.loadedEarly
	marked := h.MarkedForClose
	m.mu.Unlock()

	m.logger.Info().Str("window", h.Name).Bool("main", h.IsMain).Msg("Window created")
	m.bus.Emit(events.EventWindowCreated, h.Name)

	if marked {
		m.closeNative(h.Name, native)
		return nil
	}
	if loadedEarly {
		m.NotifyLoaded(h.Name)
	}
	return nil
}

func mergeOptions(base, over Options) Options {
	out := base
	if over.URL != "" {
		out.URL = over.URL
	}
	if over.HashRoute != "" {
		out.HashRoute = over.HashRoute
	}
	if over.Title != "" {
		out.Title = over.Title
	}
	if over.Width > 0 {
		out.Width = over.Width
	}
	if over.Height > 0 {
		out.Height = over.Height
	}
	if over.MinWidth > 0 {
		out.MinWidth = over.MinWidth
	}
	if over.MinHeight > 0 {
		out.MinHeight = over.MinHeight
	}
	out.Resizable = out.Resizable || over.Resizable
	out.Debug = out.Debug || over.Debug
	out.Hidden = over.Hidden
	if over.Main != nil {
		out.Main = over.Main
	}
	if over.OnLoad != nil {
		out.OnLoad = over.OnLoad
	}
	if over.OnClosed != nil {
		out.OnClosed = over.OnClosed
	}
	return out
}

// NotifyLoaded is called when a window's content has finished loading. The
// window is shown and focused unless it was created hidden.
func (m *Manager) NotifyLoaded(name string) {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok {
		m.mu.Unlock()
		return
	}
	if h.Native == nil {
		// Hello raced ahead of Platform.Open returning.
		h.loadedEarly = true
		m.mu.Unlock()
		return
	}
	if h.State == StateClosing || h.State == StateClosed {
		m.mu.Unlock()
		return
	}

	h.crashed = false
	show := !h.Options.Hidden
	if show {
		h.State = StateVisible
	} else {
		h.State = StateHidden
	}
	native := h.Native
	onLoad := h.Options.OnLoad
	flush := h.IsMain && m.pendingSecondInstance
	if flush {
		m.pendingSecondInstance = false
	}
	m.mu.Unlock()

	if show {
		m.logIfErr(native.Show(), name, "show")
		m.logIfErr(native.Focus(), name, "focus")
	}
	if onLoad != nil {
		onLoad(name)
	}
	m.bus.Emit(events.EventWindowLoaded, name)

	if flush {
		m.ConfirmCreateAppWindow()
	}
}

// NotifyCloseRequested handles the user clicking a window's close button.
// The native close never happens on the bare click: the first request shows
// a confirmation prompt, a repeat within the debounce interval tells the
// window a quit is in progress, and only windows marked for close proceed.
func (m *Manager) NotifyCloseRequested(name string) {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok || h.Native == nil {
		m.mu.Unlock()
		return
	}
	native := h.Native

	if h.MarkedForClose || m.quitting.Load() {
		h.State = StateClosing
		m.mu.Unlock()
		m.closeNative(name, native)
		return
	}

	now := m.now()
	if !h.lastClosePrompt.IsZero() && now.Sub(h.lastClosePrompt) < m.debounce {
		m.mu.Unlock()
		m.logger.Debug().Str("window", name).Msg("Repeated close request, handing quit to window")
		m.logIfErr(native.Send(ipc.ChannelForceAppQuit, "close"), name, "force-app-quit")
		return
	}
	h.lastClosePrompt = now
	m.mu.Unlock()

	native.Confirm(closePrompt, func(choice int) {
		if choice == closePrompt.DefaultID {
			m.CloseWindow(name)
		}
	})
}

// CloseWindow marks the window for close, bypassing confirmation, and asks
// the native window to close. Returns false for unknown names.
func (m *Manager) CloseWindow(name string) bool {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok {
		m.mu.Unlock()
		return false
	}
	first := !h.MarkedForClose
	h.MarkedForClose = true
	h.State = StateClosing
	native := h.Native
	m.mu.Unlock()

	if first {
		m.bus.Emit(events.EventWindowClosing, name)
	}
	if native != nil {
		m.closeNative(name, native)
	}
	return true
}

func (m *Manager) closeNative(name string, native Native) {
	m.logIfErr(native.Close(), name, "close")
}

// NotifyClosed is called once the native window is gone. The window leaves
// the registry and the app quits if no open window remains.
func (m *Manager) NotifyClosed(name string) {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok {
		m.mu.Unlock()
		return
	}
	h.State = StateClosed
	m.registry.Remove(name)
	if m.lastFocused == name {
		m.lastFocused = ""
	}
	onClosed := h.Options.OnClosed
	m.mu.Unlock()

	m.logger.Info().Str("window", name).Msg("Window closed")
	if onClosed != nil {
		onClosed(name)
	}
	m.bus.Emit(events.EventWindowClosed, name)

	m.TryQuitOnAllWindowsClose()
}

// NotifyCrashed is called when a window process dies unexpectedly. Windows
// already being closed are treated as closed; others get a Reload/Close prompt.
func (m *Manager) NotifyCrashed(name, reason string) {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok {
		m.mu.Unlock()
		return
	}
	if h.MarkedForClose || m.quitting.Load() || h.Native == nil {
		m.mu.Unlock()
		m.NotifyClosed(name)
		return
	}
	h.crashed = true
	native := h.Native
	m.mu.Unlock()

	m.logger.Error().Str("window", name).Str("reason", reason).Msg("Window process crashed")
	m.bus.Emit(events.EventWindowCrashed, name, reason)

	native.Confirm(crashPrompt, func(choice int) {
		if choice == crashPrompt.DefaultID {
			m.reload(name)
		} else {
			m.CloseWindow(name)
		}
	})
}

func (m *Manager) reload(name string) {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok || h.MarkedForClose {
		m.mu.Unlock()
		return
	}
	h.State = StateLoading
	native := h.Native
	m.mu.Unlock()

	m.logger.Info().Str("window", name).Msg("Reloading window")
	m.logIfErr(native.Reload(), name, "reload")
}

// NotifyFocus records a focus change reported by the native window.
func (m *Manager) NotifyFocus(name string, focused bool) {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok {
		m.mu.Unlock()
		return
	}
	changed := h.focused != focused
	h.focused = focused
	if focused {
		m.lastFocused = name
		for _, other := range m.registry.Handles() {
			if other != h {
				other.focused = false
			}
		}
	}
	m.mu.Unlock()

	if changed {
		m.bus.Emit(events.EventWindowFocus, name, focused)
	}
}

// NotifyMinimized records a minimize or restore reported by the native window.
func (m *Manager) NotifyMinimized(name string, minimized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.registry.Get(name)
	if !ok {
		return
	}
	h.minimized = minimized
	switch {
	case minimized && h.State == StateVisible:
		h.State = StateHidden
	case !minimized && h.State == StateHidden:
		h.State = StateVisible
	}
}

// HideWindow hides a window. Returns false for unknown names.
func (m *Manager) HideWindow(name string) bool {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	if !ok || h.Native == nil {
		m.mu.Unlock()
		return false
	}
	if h.State == StateVisible {
		h.State = StateHidden
	}
	native := h.Native
	m.mu.Unlock()

	m.logIfErr(native.Hide(), name, "hide")
	return true
}

// ShowAndFocusWindow shows (or restores, if minimized) and focuses a window.
// An empty name means the main window. Returns false for unknown names.
func (m *Manager) ShowAndFocusWindow(name string) bool {
	m.mu.Lock()
	h, ok := m.lookupLocked(name)
	if !ok || h.Native == nil {
		m.mu.Unlock()
		return false
	}
	minimized := h.minimized
	h.minimized = false
	if h.State == StateHidden || h.State == StateVisible {
		h.State = StateVisible
	}
	native := h.Native
	name = h.Name
	m.mu.Unlock()

	if minimized {
		m.logIfErr(native.Restore(), name, "restore")
	} else {
		m.logIfErr(native.Show(), name, "show")
	}
	m.logIfErr(native.Focus(), name, "focus")
	return true
}

func (m *Manager) lookupLocked(name string) (*Handle, bool) {
	if name == "" {
		return m.registry.Main()
	}
	return m.registry.Get(name)
}

// OpenOrCreateWindow brings the current window to front, creating an app
// window if none exists. Returns the window's name.
func (m *Manager) OpenOrCreateWindow() (string, error) {
	name, ok := m.CurrentFocusWindow()
	if !ok {
		return m.CreateAppWindow(nil)
	}

	m.mu.Lock()
	h, ok := m.registry.Get(name)
	needsShow := ok && (h.State == StateHidden || h.minimized)
	m.mu.Unlock()

	if needsShow {
		m.ShowAndFocusWindow(name)
	}
	return name, nil
}

// CurrentFocusWindow returns the focused window, falling back to the last
// focused, the main, and then the oldest open window.
func (m *Manager) CurrentFocusWindow() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentFocusLocked()
}

func (m *Manager) currentFocusLocked() (string, bool) {
	handles := m.registry.Handles()
	for _, h := range handles {
		if h.focused && h.open() {
			return h.Name, true
		}
	}
	if h, ok := m.registry.Get(m.lastFocused); ok && h.open() {
		return h.Name, true
	}
	if h, ok := m.registry.Main(); ok && h.open() {
		return h.Name, true
	}
	for _, h := range handles {
		if h.open() {
			return h.Name, true
		}
	}
	return "", false
}

// ConfirmCreateAppWindow asks the user, on the current window, whether to open
// another app window. The channel receives true if a window was created.
func (m *Manager) ConfirmCreateAppWindow() <-chan bool {
	result := make(chan bool, 1)

	m.ShowAndFocusWindow("")

	m.mu.Lock()
	var native Native
	if name, ok := m.currentFocusLocked(); ok {
		if h, ok := m.registry.Get(name); ok {
			native = h.Native
		}
	}
	m.mu.Unlock()

	if native == nil {
		_, err := m.CreateAppWindow(nil)
		result <- err == nil
		return result
	}

	native.Confirm(createWindowPrompt, func(choice int) {
		created := false
		if choice == createWindowPrompt.DefaultID {
			if _, err := m.CreateAppWindow(nil); err != nil {
				m.logger.Warn().Err(err).Msg("Failed to create app window")
			} else {
				created = true
			}
		}
		result <- created
	})
	return result
}

// SecondInstance handles another launch of the application. The prompt is
// deferred until the main window has loaded.
func (m *Manager) SecondInstance(args []string) {
	m.mu.Lock()
	main, ok := m.registry.Main()
	ready := ok && (main.State == StateVisible || main.State == StateHidden)
	if !ready {
		m.pendingSecondInstance = true
	}
	m.mu.Unlock()

	m.logger.Info().Strs("args", args).Bool("deferred", !ready).Msg("Second instance launched")
	if ready {
		m.ConfirmCreateAppWindow()
	}
}

// SendToWindow delivers a message to one window's renderer.
func (m *Manager) SendToWindow(name, channel string, args ...any) error {
	m.mu.Lock()
	h, ok := m.registry.Get(name)
	var native Native
	if ok {
		native = h.Native
	}
	m.mu.Unlock()

	if native == nil {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, name)
	}
	return native.Send(channel, args...)
}

// SendToWindows delivers a message to every open window.
func (m *Manager) SendToWindows(channel string, args ...any) {
	m.mu.Lock()
	targets := make(map[string]Native)
	for _, h := range m.registry.Handles() {
		if h.Native != nil && h.State != StateClosed {
			targets[h.Name] = h.Native
		}
	}
	m.mu.Unlock()

	for name, native := range targets {
		m.logIfErr(native.Send(channel, args...), name, channel)
	}
}

// TryQuitOnAllWindowsClose quits when no window is left open. Windows marked
// for close do not count. Returns whether quit was requested.
func (m *Manager) TryQuitOnAllWindowsClose() bool {
	m.mu.Lock()
	open := m.registry.OpenCount()
	m.mu.Unlock()

	if open > 0 {
		return false
	}
	m.Quit(nil)
	return true
}

// Quit shuts the application down: every window is hidden, global hotkeys
// are released, windows are closed, the optional successor task is started
// and given a grace period, and the platform exits. Only the first call has
// any effect.
func (m *Manager) Quit(task QuitTask) {
	if !m.quitting.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info().Bool("task", task != nil).Msg("Quitting application")
	m.bus.Emit(events.EventAppQuit)

	type target struct {
		name   string
		native Native
	}
	m.mu.Lock()
	var targets []target
	for _, h := range m.registry.Handles() {
		h.MarkedForClose = true
		if h.State != StateClosed {
			h.State = StateClosing
		}
		if h.Native != nil {
			targets = append(targets, target{h.Name, h.Native})
		}
	}
	m.mu.Unlock()

	for _, t := range targets {
		m.logIfErr(t.native.Hide(), t.name, "hide")
	}
	m.platform.UnregisterHotkeys()
	for _, t := range targets {
		m.closeNative(t.name, t.native)
	}

	if task != nil {
		if err := task.Start(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to start quit task")
		} else {
			m.sleep(m.quitGrace)
			if err := task.Release(); err != nil {
				m.logger.Warn().Err(err).Msg("Failed to release quit task")
			}
		}
	}

	m.platform.Exit()
}

// IsQuitting reports whether Quit has been called.
func (m *Manager) IsQuitting() bool {
	return m.quitting.Load()
}

// Windows returns snapshots of all windows in creation order.
func (m *Manager) Windows() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := m.registry.Handles()
	out := make([]Info, len(handles))
	for i, h := range handles {
		out[i] = h.info()
	}
	return out
}

// Window returns a snapshot of one window.
func (m *Manager) Window(name string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.registry.Get(name)
	if !ok {
		return Info{}, false
	}
	return h.info(), true
}

// State returns a window's lifecycle state.
func (m *Manager) State(name string) (State, bool) {
	info, ok := m.Window(name)
	return info.State, ok
}

// Len returns the number of registered windows.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Len()
}

func (m *Manager) logIfErr(err error, name, op string) {
	if err != nil {
		m.logger.Warn().Err(err).Str("window", name).Str("op", op).Msg("Native window operation failed")
	}
}

// Package tray manages one status-area icon per window, including the
// two-frame flash used to signal unread messages.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/easysoft/xuanxuan-host/internal/constants"
	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// IconState is the animation state of a tray entry.
type IconState int

const (
	StateIdle IconState = iota
	StateFlashing
)

func (s IconState) String() string {
	if s == StateFlashing {
		return "flashing"
	}
	return "idle"
}

// Actions are the window operations reachable from an icon. Open also
// handles a primary click on the icon.
type Actions struct {
	Open func()
	Exit func()
}

// Options configure a Controller.
type Options struct {
	Backend  Backend
	Logger   *logging.Logger
	Interval time.Duration
	Frames   [2][]byte
	Tooltip  string

	OpenLabel string
	ExitLabel string
}

type entry struct {
	windowName string
	icon       Icon
	state      IconState
	frame      int
	ticks      int
	stop       chan struct{}
}

// Controller owns the tray entries, at most one per window name.
type Controller struct {
	backend   Backend
	logger    *logging.Logger
	interval  time.Duration
	frames    [2][]byte
	tooltip   string
	openLabel string
	exitLabel string

	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

// NewController creates a tray controller.
func NewController(opts Options) *Controller {
	c := &Controller{
		backend:   opts.Backend,
		logger:    opts.Logger,
		interval:  opts.Interval,
		frames:    opts.Frames,
		tooltip:   opts.Tooltip,
		openLabel: opts.OpenLabel,
		exitLabel: opts.ExitLabel,
		entries:   make(map[string]*entry),
	}
	if c.backend == nil {
		c.backend = NopBackend{}
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.interval <= 0 {
		c.interval = constants.TrayFlashInterval
	}
	if c.frames[0] == nil {
		c.frames = DefaultFrames()
	}
	if c.tooltip == "" {
		c.tooltip = constants.DefaultTrayTooltip
	}
	if c.openLabel == "" {
		c.openLabel = "Open"
	}
	if c.exitLabel == "" {
		c.exitLabel = "Exit"
	}
	return c
}

// CreateTrayIcon creates the icon for windowName, disposing any existing one.
func (c *Controller) CreateTrayIcon(windowName string, actions Actions) error {
	c.RemoveTrayIcon(windowName)

	icon, err := c.backend.NewIcon(IconSpec{
		Frames:     c.frames,
		Tooltip:    c.tooltip,
		OnActivate: actions.Open,
		Menu: []MenuItem{
			{Label: c.openLabel, OnClick: actions.Open},
			{Label: c.exitLabel, OnClick: actions.Exit},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create tray icon for %s: %w", windowName, err)
	}

	c.mu.Lock()
	old := c.entries[windowName]
	if old != nil {
		c.stopLocked(old)
	}
	c.entries[windowName] = &entry{windowName: windowName, icon: icon}
	c.mu.Unlock()

	if old != nil {
		old.icon.Destroy()
	}
	c.logger.Debug().Str("window", windowName).Msg("Tray icon created")
	return nil
}

// RemoveTrayIcon stops any flash and destroys the icon. Unknown names are ignored.
func (c *Controller) RemoveTrayIcon(windowName string) {
	c.mu.Lock()
	e, ok := c.entries[windowName]
	if ok {
		c.stopLocked(e)
		delete(c.entries, windowName)
	}
	c.mu.Unlock()

	if ok {
		e.icon.Destroy()
		c.logger.Debug().Str("window", windowName).Msg("Tray icon removed")
	}
}

// FlashTrayIcon starts or stops the flash animation. Starting an already
// flashing icon does nothing; stopping restores frame 0.
func (c *Controller) FlashTrayIcon(flash bool, windowName string) {
	c.mu.Lock()
	e, ok := c.entries[windowName]
	if !ok {
		c.mu.Unlock()
		return
	}

	if flash {
		if e.state == StateFlashing {
			c.mu.Unlock()
			return
		}
		e.state = StateFlashing
		e.ticks = 0
		e.stop = make(chan struct{})
		stop := e.stop
		c.wg.Add(1)
		c.mu.Unlock()

		go c.blink(e, stop)
		return
	}

	c.stopLocked(e)
	e.icon.SetFrame(0)
	c.mu.Unlock()
}

// stopLocked cancels the flash timer and resets the entry to frame 0.
func (c *Controller) stopLocked(e *entry) {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	e.state = StateIdle
	e.frame = 0
}

func (c *Controller) blink(e *entry, stop chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if e.stop != stop {
				c.mu.Unlock()
				return
			}
			e.ticks++
			e.frame = e.ticks % 2
			// Under the lock so a concurrent stop always lands on frame 0 last.
			e.icon.SetFrame(e.frame)
			c.mu.Unlock()
		}
	}
}

// TrayTooltip sets the tooltip; empty text restores the default.
func (c *Controller) TrayTooltip(text, windowName string) {
	if text == "" {
		text = c.tooltip
	}
	if icon, ok := c.icon(windowName); ok {
		icon.SetTooltip(text)
	}
}

// TrayIconTitle sets the text shown next to the icon where supported.
func (c *Controller) TrayIconTitle(text, windowName string) {
	if icon, ok := c.icon(windowName); ok {
		icon.SetTitle(text)
	}
}

func (c *Controller) icon(windowName string) (Icon, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[windowName]
	if !ok {
		return nil, false
	}
	return e.icon, true
}

// State returns the animation state and current frame of a window's icon.
func (c *Controller) State(windowName string) (IconState, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[windowName]
	if !ok {
		return StateIdle, 0, false
	}
	return e.state, e.frame, true
}

// ActiveTimers returns the number of running flash timers.
func (c *Controller) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.stop != nil {
			n++
		}
	}
	return n
}

// Len returns the number of tray entries.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close removes every icon and waits for flash timers to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*entry)
	for _, e := range entries {
		c.stopLocked(e)
	}
	c.mu.Unlock()

	for _, e := range entries {
		e.icon.Destroy()
	}
	c.wg.Wait()
}

package tray

import (
	"sync"

	"fyne.io/systray"

	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// SystrayBackend shows icons in the OS status area. The platform offers a
// single icon per process, so the most recently created live icon is
// displayed; when it is destroyed the previous one takes over again.
type SystrayBackend struct {
	logger *logging.Logger

	mu    sync.Mutex
	ready bool
	stack []*systrayIcon
	items []*systray.MenuItem
	blank []byte
}

// NewSystrayBackend creates the backend. Run must be called on the main
// goroutine before icons become visible.
func NewSystrayBackend(logger *logging.Logger) *SystrayBackend {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SystrayBackend{
		logger: logger,
		blank:  blankPNG(),
	}
}

// Run starts the status-area event loop and blocks until Quit is called.
func (b *SystrayBackend) Run(onReady, onExit func()) {
	systray.Run(func() {
		b.mu.Lock()
		b.ready = true
		b.applyLocked()
		b.mu.Unlock()
		systray.SetOnTapped(b.activate)

		b.logger.Debug().Msg("Status area ready")
		if onReady != nil {
			onReady()
		}
	}, onExit)
}

// Quit stops the event loop, making Run return.
func (b *SystrayBackend) Quit() {
	systray.Quit()
}

// NewIcon registers an icon and makes it the displayed one.
func (b *SystrayBackend) NewIcon(spec IconSpec) (Icon, error) {
	icon := &systrayIcon{backend: b, spec: spec, tooltip: spec.Tooltip}

	b.mu.Lock()
	b.stack = append(b.stack, icon)
	b.applyLocked()
	b.mu.Unlock()
	return icon, nil
}

func (b *SystrayBackend) topLocked() *systrayIcon {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// applyLocked pushes the displayed icon's state to the status area.
func (b *SystrayBackend) applyLocked() {
	if !b.ready {
		return
	}

	top := b.topLocked()
	if top == nil {
		systray.SetIcon(b.blank)
		systray.SetTooltip("")
		systray.SetTitle("")
		for _, item := range b.items {
			item.Hide()
		}
		return
	}

	systray.SetIcon(top.spec.Frames[top.frame])
	systray.SetTooltip(top.tooltip)
	systray.SetTitle(top.title)

	for i, mi := range top.spec.Menu {
		item := b.itemLocked(i)
		item.SetTitle(mi.Label)
		item.SetTooltip(mi.Tooltip)
		item.Show()
	}
	for i := len(top.spec.Menu); i < len(b.items); i++ {
		b.items[i].Hide()
	}
}

func (b *SystrayBackend) itemLocked(i int) *systray.MenuItem {
	for len(b.items) <= i {
		idx := len(b.items)
		item := systray.AddMenuItem("", "")
		b.items = append(b.items, item)
		go b.watch(idx, item)
	}
	return b.items[i]
}

func (b *SystrayBackend) watch(idx int, item *systray.MenuItem) {
	for range item.ClickedCh {
		b.mu.Lock()
		var onClick func()
		if top := b.topLocked(); top != nil && idx < len(top.spec.Menu) {
			onClick = top.spec.Menu[idx].OnClick
		}
		b.mu.Unlock()

		if onClick != nil {
			onClick()
		}
	}
}

// activate forwards a primary click to the displayed icon.
func (b *SystrayBackend) activate() {
	b.mu.Lock()
	var onActivate func()
	if top := b.topLocked(); top != nil {
		onActivate = top.spec.OnActivate
	}
	b.mu.Unlock()

	if onActivate != nil {
		onActivate()
	}
}

func (b *SystrayBackend) update(icon *systrayIcon, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
	if b.topLocked() == icon {
		b.applyLocked()
	}
}

func (b *SystrayBackend) remove(icon *systrayIcon) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.stack {
		if s == icon {
			b.stack = append(b.stack[:i], b.stack[i+1:]...)
			b.applyLocked()
			return
		}
	}
}

type systrayIcon struct {
	backend *SystrayBackend
	spec    IconSpec

	// guarded by backend.mu
	frame   int
	tooltip string
	title   string
}

func (i *systrayIcon) SetFrame(index int) {
	i.backend.update(i, func() { i.frame = index % 2 })
}

func (i *systrayIcon) SetTooltip(text string) {
	i.backend.update(i, func() { i.tooltip = text })
}

func (i *systrayIcon) SetTitle(text string) {
	i.backend.update(i, func() { i.title = text })
}

func (i *systrayIcon) Destroy() {
	i.backend.remove(i)
}

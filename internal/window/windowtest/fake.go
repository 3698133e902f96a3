// Package windowtest provides an in-memory window.Platform for tests.
package windowtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/easysoft/xuanxuan-host/internal/window"
)

// Sent is one message delivered to a fake window.
type Sent struct {
	Channel string
	Args    []any
}

// PendingPrompt is a Confirm call waiting for an answer.
type PendingPrompt struct {
	Window string
	Prompt window.Prompt
	answer func(int)
	once   sync.Once
}

// Answer resolves the prompt with choice.
func (p *PendingPrompt) Answer(choice int) {
	p.once.Do(func() { p.answer(choice) })
}

// Native records every call made on one window.
type Native struct {
	platform *Platform
	name     string

	mu       sync.Mutex
	ops      []string
	sent     []Sent
	sendErr  error
	closeErr error
}

var _ window.Native = (*Native)(nil)

func (n *Native) record(op string) {
	n.mu.Lock()
	n.ops = append(n.ops, op)
	n.mu.Unlock()
}

func (n *Native) Show() error    { n.record("show"); return nil }
func (n *Native) Hide() error    { n.record("hide"); return nil }
func (n *Native) Focus() error   { n.record("focus"); return nil }
func (n *Native) Restore() error { n.record("restore"); return nil }
func (n *Native) Reload() error  { n.record("reload"); return nil }

func (n *Native) Close() error {
	n.record("close")
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closeErr
}

func (n *Native) Send(channel string, args ...any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, Sent{Channel: channel, Args: args})
	return nil
}

func (n *Native) Confirm(p window.Prompt, answer func(choice int)) {
	n.record("confirm")
	n.platform.addPrompt(&PendingPrompt{Window: n.name, Prompt: p, answer: answer})
}

// Ops returns the recorded native operations in call order.
func (n *Native) Ops() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ops...)
}

// Count returns how many times op was called.
func (n *Native) Count(op string) int {
	c := 0
	for _, o := range n.Ops() {
		if o == op {
			c++
		}
	}
	return c
}

// Sent returns the messages delivered to this window.
func (n *Native) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// FailSends makes every later Send return err (nil restores).
func (n *Native) FailSends(err error) {
	n.mu.Lock()
	n.sendErr = err
	n.mu.Unlock()
}

// Platform is a fake window.Platform. Windows never load or close on their
// own; tests drive the manager's Notify methods.
type Platform struct {
	mu              sync.Mutex
	windows         map[string]*Native
	opened          []string
	prompts         []*PendingPrompt
	openErr         error
	hotkeysReleased int
	exits           int
	exitCh          chan struct{}
	exitOnce        sync.Once
}

var _ window.Platform = (*Platform)(nil)

// NewPlatform creates an empty fake platform.
func NewPlatform() *Platform {
	return &Platform{
		windows: make(map[string]*Native),
		exitCh:  make(chan struct{}),
	}
}

// ErrOpenFailed is returned by Open after FailOpen.
var ErrOpenFailed = errors.New("open failed")

func (p *Platform) Open(name string, opts window.Options) (window.Native, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	n := &Native{platform: p, name: name}
	p.windows[name] = n
	p.opened = append(p.opened, name)
	return n, nil
}

func (p *Platform) UnregisterHotkeys() {
	p.mu.Lock()
	p.hotkeysReleased++
	p.mu.Unlock()
}

func (p *Platform) Exit() {
	p.mu.Lock()
	p.exits++
	p.mu.Unlock()
	p.exitOnce.Do(func() { close(p.exitCh) })
}

// FailOpen makes Open return ErrOpenFailed (or succeed again with false).
func (p *Platform) FailOpen(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fail {
		p.openErr = ErrOpenFailed
	} else {
		p.openErr = nil
	}
}

// Window returns the most recent native opened under name.
func (p *Platform) Window(name string) *Native {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.windows[name]
	if !ok {
		panic(fmt.Sprintf("windowtest: no window %q", name))
	}
	return n
}

// Opened returns window names in the order they were opened.
func (p *Platform) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

func (p *Platform) addPrompt(pp *PendingPrompt) {
	p.mu.Lock()
	p.prompts = append(p.prompts, pp)
	p.mu.Unlock()
}

// Prompts returns every prompt shown so far.
func (p *Platform) Prompts() []*PendingPrompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*PendingPrompt(nil), p.prompts...)
}

// LastPrompt returns the most recent prompt, or nil.
func (p *Platform) LastPrompt() *PendingPrompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return nil
	}
	return p.prompts[len(p.prompts)-1]
}

// Exits returns how many times Exit was called.
func (p *Platform) Exits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exits
}

// HotkeysReleased returns how many times UnregisterHotkeys was called.
func (p *Platform) HotkeysReleased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hotkeysReleased
}

// Done is closed on the first Exit.
func (p *Platform) Done() <-chan struct{} {
	return p.exitCh
}

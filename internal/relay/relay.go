// Package relay forwards host EventBus events to subscribed window processes.
package relay

import (
	"sync"

	"github.com/easysoft/xuanxuan-host/internal/events"
	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// Sender delivers a message to a window.
type Sender interface {
	SendToWindow(name, channel string, args ...any) error
}

type forward struct {
	eventID   string
	eventName string
	window    string
	subID     events.SubscriptionID
	removed   bool
}

// key identifies a forward. Event ids are chosen by each window, so two
// windows may use the same one.
type key struct {
	window  string
	eventID string
}

func (f *forward) key() key { return key{f.window, f.eventID} }

// Relay tracks event forwards by destination window and caller-chosen event
// id. A forward is removed on explicit unsubscribe, when its window goes
// away, or the first time delivery to its window fails.
type Relay struct {
	bus    *events.EventBus
	sender Sender
	logger *logging.Logger

	mu       sync.Mutex
	forwards map[key]*forward
}

// New creates a relay on bus delivering through sender.
func New(bus *events.EventBus, sender Sender, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Relay{
		bus:      bus,
		sender:   sender,
		logger:   logger,
		forwards: make(map[key]*forward),
	}
}

// Subscribe forwards every eventName emission to window on channel eventID.
// Re-using an event id from the same window replaces the earlier forward.
func (r *Relay) Subscribe(eventID, eventName, window string) {
	f := &forward{eventID: eventID, eventName: eventName, window: window}

	r.mu.Lock()
	old := r.forwards[f.key()]
	r.forwards[f.key()] = f
	r.mu.Unlock()
	if old != nil {
		r.remove(old)
	}

	subID := r.bus.On(eventName, func(args ...any) {
		if err := r.sender.SendToWindow(f.window, f.eventID, args...); err != nil {
			r.logger.Debug().Err(err).
				Str("event", f.eventName).
				Str("window", f.window).
				Msg("Event forward failed, unsubscribing")
			r.remove(f)
		}
	})

	r.mu.Lock()
	f.subID = subID
	removed := f.removed
	r.mu.Unlock()
	// Torn down before the listener id was known.
	if removed {
		r.bus.Off(subID)
	}

	r.logger.Debug().Str("event", eventName).Str("id", eventID).Str("window", window).Msg("Remote subscribe")
}

// Unsubscribe removes window's forward for eventID. Unknown ids are ignored.
func (r *Relay) Unsubscribe(window, eventID string) bool {
	r.mu.Lock()
	f, ok := r.forwards[key{window, eventID}]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.remove(f)
}

// remove is the single teardown path for a forward.
func (r *Relay) remove(f *forward) bool {
	r.mu.Lock()
	if f.removed {
		r.mu.Unlock()
		return false
	}
	f.removed = true
	if r.forwards[f.key()] == f {
		delete(r.forwards, f.key())
	}
	subID := f.subID
	r.mu.Unlock()

	if subID != "" {
		r.bus.Off(subID)
	}
	return true
}

// UnsubscribeWindow removes every forward targeting window.
func (r *Relay) UnsubscribeWindow(window string) int {
	r.mu.Lock()
	var doomed []*forward
	for _, f := range r.forwards {
		if f.window == window {
			doomed = append(doomed, f)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, f := range doomed {
		if r.remove(f) {
			n++
		}
	}
	return n
}

// RelayEmit fires eventName on the host bus on behalf of a window.
func (r *Relay) RelayEmit(eventName string, args ...any) int {
	return r.bus.Emit(eventName, args...)
}

// Len returns the number of live forwards.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forwards)
}

// Has reports whether window has a forward for eventID.
func (r *Relay) Has(window, eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.forwards[key{window, eventID}]
	return ok
}

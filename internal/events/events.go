// Package events implements the host-wide named-event bus. Window lifecycle
// notifications, relayed renderer events, and host components all meet here.
package events

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/easysoft/xuanxuan-host/internal/logging"
)

// Host lifecycle events emitted by the window manager.
const (
	EventWindowCreated = "window.created"
	EventWindowLoaded  = "window.loaded"
	EventWindowClosing = "window.closing"
	EventWindowClosed  = "window.closed"
	EventWindowCrashed = "window.crashed"
	EventWindowFocus   = "window.focus"
	EventAppQuit       = "app.quit"
)

// SubscriptionID identifies one registration. IDs are unique for the life of
// the process, so the same listener registered twice gets two IDs.
type SubscriptionID string

// Listener receives the arguments passed to Emit.
type Listener func(args ...any)

type subscription struct {
	id       SubscriptionID
	event    string
	listener Listener
	once     bool
	fired    atomic.Bool
}

// EventBus dispatches named events to listeners synchronously, in
// registration order. Emit works on a snapshot of the listener list, so
// listeners may subscribe or unsubscribe (including themselves) while an
// emission is running; such changes apply from the next Emit.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	byID        map[SubscriptionID]*subscription
	closed      bool

	debug           atomic.Bool
	failedListeners atomic.Int64
	logger          *logging.Logger
}

// NewEventBus creates a new event bus. A nil logger discards diagnostics.
func NewEventBus(logger *logging.Logger) *EventBus {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EventBus{
		subscribers: make(map[string][]*subscription),
		byID:        make(map[SubscriptionID]*subscription),
		logger:      logger,
	}
}

// SetDebug toggles tracing of every registration and emission.
func (eb *EventBus) SetDebug(enabled bool) {
	eb.debug.Store(enabled)
}

// On registers listener for event and returns its subscription id.
func (eb *EventBus) On(event string, listener Listener) SubscriptionID {
	return eb.add(event, listener, false)
}

// Once registers listener for a single delivery. The subscription is removed
// before the listener runs, so a re-entrant Emit of the same event from inside
// the listener does not deliver to it again.
func (eb *EventBus) Once(event string, listener Listener) SubscriptionID {
	return eb.add(event, listener, true)
}

func (eb *EventBus) add(event string, listener Listener, once bool) SubscriptionID {
	sub := &subscription{
		id:       SubscriptionID(uuid.NewString()),
		event:    event,
		listener: listener,
		once:     once,
	}

	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return sub.id
	}
	eb.subscribers[event] = append(eb.subscribers[event], sub)
	eb.byID[sub.id] = sub
	eb.mu.Unlock()

	if eb.debug.Load() {
		eb.logger.Debug().Str("event", event).Str("id", string(sub.id)).Bool("once", once).Msg("ON EVENT")
	}
	return sub.id
}

// Off removes the given subscriptions and reports whether at least one was
// registered. Unknown ids are ignored.
func (eb *EventBus) Off(ids ...SubscriptionID) bool {
	eb.mu.Lock()
	removed := 0
	for _, id := range ids {
		sub, ok := eb.byID[id]
		if !ok {
			continue
		}
		delete(eb.byID, id)
		list := slices.DeleteFunc(eb.subscribers[sub.event], func(s *subscription) bool {
			return s.id == id
		})
		if len(list) == 0 {
			delete(eb.subscribers, sub.event)
		} else {
			eb.subscribers[sub.event] = list
		}
		removed++
	}
	eb.mu.Unlock()

	if removed > 0 && eb.debug.Load() {
		eb.logger.Debug().Int("count", removed).Msg("OFF EVENT")
	}
	return removed > 0
}

// Emit delivers args to every listener registered for event at the moment of
// the call and returns how many listeners were invoked. A panicking listener
// is logged and counted; the remaining listeners still run.
func (eb *EventBus) Emit(event string, args ...any) int {
	eb.mu.RLock()
	if eb.closed {
		eb.mu.RUnlock()
		return 0
	}
	snapshot := slices.Clone(eb.subscribers[event])
	eb.mu.RUnlock()

	if eb.debug.Load() {
		eb.logger.Debug().Str("event", event).Int("listeners", len(snapshot)).Msg("EMIT EVENT")
	}

	invoked := 0
	for _, sub := range snapshot {
		if sub.once {
			if !sub.fired.CompareAndSwap(false, true) {
				continue
			}
			eb.Off(sub.id)
		}
		eb.invoke(sub, args)
		invoked++
	}
	return invoked
}

func (eb *EventBus) invoke(sub *subscription, args []any) {
	defer func() {
		if r := recover(); r != nil {
			eb.failedListeners.Add(1)
			eb.logger.Error().
				Str("event", sub.event).
				Str("id", string(sub.id)).
				Str("panic", fmt.Sprint(r)).
				Msg("Event listener failed")
		}
	}()
	sub.listener(args...)
}

// ListenerCount returns the number of listeners registered for event.
func (eb *EventBus) ListenerCount(event string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[event])
}

// Has reports whether id is currently registered.
func (eb *EventBus) Has(id SubscriptionID) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	_, ok := eb.byID[id]
	return ok
}

// FailedListenerCount returns how many listener invocations have panicked.
func (eb *EventBus) FailedListenerCount() int64 {
	return eb.failedListeners.Load()
}

// Close drops all listeners. Emit and On become no-ops afterwards.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	eb.subscribers = make(map[string][]*subscription)
	eb.byID = make(map[SubscriptionID]*subscription)
}

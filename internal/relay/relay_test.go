package relay

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easysoft/xuanxuan-host/internal/events"
)

type delivery struct {
	window  string
	channel string
	args    []any
}

type fakeSender struct {
	mu         sync.Mutex
	deliveries []delivery
	gone       map[string]bool
}

func (s *fakeSender) SendToWindow(name, channel string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone[name] {
		return errors.New("window not found: " + name)
	}
	s.deliveries = append(s.deliveries, delivery{name, channel, args})
	return nil
}

func (s *fakeSender) close(name string) {
	s.mu.Lock()
	s.gone[name] = true
	s.mu.Unlock()
}

func (s *fakeSender) all() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

func newRelay() (*Relay, *events.EventBus, *fakeSender) {
	bus := events.NewEventBus(nil)
	sender := &fakeSender{gone: make(map[string]bool)}
	return New(bus, sender, nil), bus, sender
}

func TestSubscribeForwards(t *testing.T) {
	r, bus, sender := newRelay()

	r.Subscribe("evt-1", "lang-change", "main")
	bus.Emit("lang-change", "zh-cn")

	assert.Equal(t, []delivery{{"main", "evt-1", []any{"zh-cn"}}}, sender.all())
}

func TestUnsubscribeStopsForwarding(t *testing.T) {
	r, bus, sender := newRelay()

	r.Subscribe("evt-1", "lang-change", "main")
	assert.False(t, r.Unsubscribe("main-0", "evt-1"), "another window cannot remove the forward")
	assert.True(t, r.Unsubscribe("main", "evt-1"))
	assert.False(t, r.Unsubscribe("main", "evt-1"))

	bus.Emit("lang-change", "en")
	assert.Empty(t, sender.all())
	assert.Equal(t, 0, bus.ListenerCount("lang-change"))
}

func TestFailedSendUnsubscribes(t *testing.T) {
	r, bus, sender := newRelay()

	r.Subscribe("evt-1", "lang-change", "main-0")
	r.Subscribe("evt-2", "lang-change", "main")
	sender.close("main-0")

	bus.Emit("lang-change", "zh-cn")

	assert.False(t, r.Has("main-0", "evt-1"), "forward to a closed window must be removed")
	assert.True(t, r.Has("main", "evt-2"))
	assert.Equal(t, 1, bus.ListenerCount("lang-change"))
	assert.Equal(t, []delivery{{"main", "evt-2", []any{"zh-cn"}}}, sender.all())
}

func TestResubscribeReplaces(t *testing.T) {
	r, bus, sender := newRelay()

	r.Subscribe("evt-1", "lang-change", "main")
	r.Subscribe("evt-1", "theme-change", "main")

	bus.Emit("lang-change", "en")
	bus.Emit("theme-change", "dark")

	require.Len(t, sender.all(), 1)
	assert.Equal(t, "evt-1", sender.all()[0].channel)
	assert.Equal(t, []any{"dark"}, sender.all()[0].args)
	assert.Equal(t, 1, r.Len())
}

func TestSameEventIDFromTwoWindows(t *testing.T) {
	r, bus, sender := newRelay()

	r.Subscribe("evt1", "lang-change", "main")
	r.Subscribe("evt1", "lang-change", "main-0")
	require.Equal(t, 2, r.Len())

	bus.Emit("lang-change", "en")
	assert.ElementsMatch(t, []delivery{
		{"main", "evt1", []any{"en"}},
		{"main-0", "evt1", []any{"en"}},
	}, sender.all())

	assert.True(t, r.Unsubscribe("main-0", "evt1"))
	assert.True(t, r.Has("main", "evt1"))
	assert.Equal(t, 1, bus.ListenerCount("lang-change"))
}

func TestConcurrentSubscribeAndFailingEmit(t *testing.T) {
	r, bus, sender := newRelay()
	sender.close("gone")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Subscribe("evt", "tick", "gone")
		}()
		go func() {
			defer wg.Done()
			bus.Emit("tick")
		}()
	}
	wg.Wait()
	bus.Emit("tick")

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, bus.ListenerCount("tick"))
}

func TestUnsubscribeWindow(t *testing.T) {
	r, bus, _ := newRelay()

	r.Subscribe("a", "lang-change", "main")
	r.Subscribe("b", "user-login", "main")
	r.Subscribe("c", "lang-change", "main-0")

	assert.Equal(t, 2, r.UnsubscribeWindow("main"))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, bus.ListenerCount("lang-change"))
	assert.Equal(t, 0, bus.ListenerCount("user-login"))
}

func TestEmitReachesHostListeners(t *testing.T) {
	r, bus, _ := newRelay()

	var got []any
	bus.On("user-login", func(args ...any) { got = args })

	assert.Equal(t, 1, r.RelayEmit("user-login", "alice"))
	assert.Equal(t, []any{"alice"}, got)
}

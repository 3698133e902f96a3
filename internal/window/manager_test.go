package window_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/easysoft/xuanxuan-host/internal/events"
	"github.com/easysoft/xuanxuan-host/internal/ipc"
	"github.com/easysoft/xuanxuan-host/internal/window"
	"github.com/easysoft/xuanxuan-host/internal/window/windowtest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	platform *windowtest.Platform
	bus      *events.EventBus
	clock    *fakeClock
	slept    []time.Duration
	manager  *window.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		platform: windowtest.NewPlatform(),
		bus:      events.NewEventBus(nil),
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.manager = window.NewManager(window.ManagerOptions{
		Platform: f.platform,
		Bus:      f.bus,
		AppDefaults: window.Options{
			URL:       "index.html",
			Width:     900,
			Height:    650,
			MinWidth:  400,
			MinHeight: 650,
		},
		Now:   f.clock.Now,
		Sleep: func(d time.Duration) { f.slept = append(f.slept, d) },
	})
	return f
}

// loaded creates a window and reports it loaded.
func (f *fixture) loaded(t *testing.T, name string) *windowtest.Native {
	t.Helper()
	_, err := f.manager.CreateWindow(name, window.Options{})
	require.NoError(t, err)
	f.manager.NotifyLoaded(name)
	return f.platform.Window(name)
}

func (f *fixture) record(event string) *[]string {
	var got []string
	f.bus.On(event, func(args ...any) {
		name, _ := args[0].(string)
		got = append(got, name)
	})
	return &got
}

func TestCreateWindowLifecycle(t *testing.T) {
	f := newFixture(t)
	created := f.record(events.EventWindowCreated)
	loaded := f.record(events.EventWindowLoaded)

	name, err := f.manager.CreateWindow("main", window.Options{})
	require.NoError(t, err)
	assert.Equal(t, "main", name)

	state, ok := f.manager.State("main")
	require.True(t, ok)
	assert.Equal(t, window.StateLoading, state)

	f.manager.NotifyLoaded("main")
	state, _ = f.manager.State("main")
	assert.Equal(t, window.StateVisible, state)
	assert.Equal(t, []string{"show", "focus"}, f.platform.Window("main").Ops())

	assert.Equal(t, []string{"main"}, *created)
	assert.Equal(t, []string{"main"}, *loaded)

	info, _ := f.manager.Window("main")
	assert.True(t, info.IsMain)
}

func TestCreateWindowDuplicateName(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CreateWindow("chat", window.Options{})
	require.NoError(t, err)

	_, err = f.manager.CreateWindow("chat", window.Options{})
	assert.ErrorIs(t, err, window.ErrWindowExists)
	assert.Equal(t, 1, f.manager.Len())
}

func TestCreateWindowOpenFailure(t *testing.T) {
	f := newFixture(t)
	f.platform.FailOpen(true)

	_, err := f.manager.CreateWindow("main", window.Options{})
	assert.ErrorIs(t, err, windowtest.ErrOpenFailed)
	assert.Equal(t, 0, f.manager.Len())
}

func TestHiddenWindowStaysHidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CreateWindow("bg", window.Options{Hidden: true})
	require.NoError(t, err)
	f.manager.NotifyLoaded("bg")

	state, _ := f.manager.State("bg")
	assert.Equal(t, window.StateHidden, state)
	assert.Empty(t, f.platform.Window("bg").Ops())
}

func TestFirstWindowIsMainUnlessOverridden(t *testing.T) {
	f := newFixture(t)
	no := false
	_, err := f.manager.CreateWindow("helper", window.Options{Main: &no})
	require.NoError(t, err)
	_, err = f.manager.CreateWindow("chat", window.Options{})
	require.NoError(t, err)

	helper, _ := f.manager.Window("helper")
	chat, _ := f.manager.Window("chat")
	assert.False(t, helper.IsMain)
	assert.True(t, chat.IsMain)
}

func TestCreateAppWindowNaming(t *testing.T) {
	f := newFixture(t)

	for _, want := range []string{"main", "main-0", "main-1"} {
		name, err := f.manager.CreateAppWindow(nil)
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}

	infos := f.manager.Windows()
	require.Len(t, infos, 3)
	assert.True(t, infos[0].IsMain)
	assert.False(t, infos[1].IsMain)
}

func TestCloseConfirmationEndToEnd(t *testing.T) {
	f := newFixture(t)
	closed := f.record(events.EventWindowClosed)
	native := f.loaded(t, "main")

	f.manager.NotifyCloseRequested("main")

	prompts := f.platform.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "main", prompts[0].Window)
	state, _ := f.manager.State("main")
	assert.Equal(t, window.StateVisible, state, "bare close click must not close")
	assert.Zero(t, native.Count("close"))

	prompts[0].Answer(0)
	state, _ = f.manager.State("main")
	assert.Equal(t, window.StateClosing, state)
	assert.Equal(t, 1, native.Count("close"))

	f.manager.NotifyClosed("main")
	_, ok := f.manager.State("main")
	assert.False(t, ok)
	assert.Equal(t, []string{"main"}, *closed)
	assert.Equal(t, 1, f.platform.Exits())
	assert.True(t, f.manager.IsQuitting())
}

func TestCloseConfirmationCancelled(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")

	f.manager.NotifyCloseRequested("main")
	f.platform.LastPrompt().Answer(1)

	state, _ := f.manager.State("main")
	assert.Equal(t, window.StateVisible, state)
	assert.Zero(t, native.Count("close"))
	assert.Zero(t, f.platform.Exits())
}

func TestCloseDebounce(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")

	f.manager.NotifyCloseRequested("main")
	f.clock.Advance(300 * time.Millisecond)
	f.manager.NotifyCloseRequested("main")

	assert.Len(t, f.platform.Prompts(), 1, "second click within debounce must not prompt")
	sent := native.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ipc.ChannelForceAppQuit, sent[0].Channel)
	assert.Zero(t, native.Count("close"))

	// Outside the debounce interval a new prompt is shown.
	f.clock.Advance(2 * time.Second)
	f.manager.NotifyCloseRequested("main")
	assert.Len(t, f.platform.Prompts(), 2)
}

func TestCloseDebounceIsPerWindow(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "main")
	f.loaded(t, "main-0")

	f.manager.NotifyCloseRequested("main")
	f.manager.NotifyCloseRequested("main-0")

	assert.Len(t, f.platform.Prompts(), 2)
}

func TestMarkedWindowClosesWithoutPrompt(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")
	f.loaded(t, "other")

	assert.True(t, f.manager.CloseWindow("main"))
	f.manager.NotifyCloseRequested("main")

	assert.Empty(t, f.platform.Prompts())
	assert.Equal(t, 2, native.Count("close"))
}

func TestCloseWindowUnknown(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.manager.CloseWindow("ghost"))
	assert.False(t, f.manager.HideWindow("ghost"))
	assert.False(t, f.manager.ShowAndFocusWindow("ghost"))
}

func TestQuitOnlyWhenLastOpenWindowCloses(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "main")
	f.loaded(t, "main-0")

	f.manager.CloseWindow("main")
	f.manager.NotifyClosed("main")
	assert.Zero(t, f.platform.Exits())

	f.manager.CloseWindow("main-0")
	f.manager.NotifyClosed("main-0")
	assert.Equal(t, 1, f.platform.Exits())
}

func TestMarkedWindowsDoNotKeepAppAlive(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "a")
	f.loaded(t, "b")

	f.manager.CloseWindow("a") // marked, not yet closed
	f.manager.NotifyClosed("b")
	assert.Equal(t, 1, f.platform.Exits())

	f.manager.NotifyClosed("a")
	assert.Equal(t, 1, f.platform.Exits(), "quit must fire once")
}

func TestQuitSequence(t *testing.T) {
	f := newFixture(t)
	quits := 0
	f.bus.On(events.EventAppQuit, func(args ...any) { quits++ })
	a := f.loaded(t, "main")
	b := f.loaded(t, "main-0")

	task := &fakeTask{}
	f.manager.Quit(task)
	f.manager.Quit(nil)

	assert.Equal(t, 1, quits)
	assert.Equal(t, 1, f.platform.Exits())
	assert.Equal(t, 1, f.platform.HotkeysReleased())
	for _, n := range []*windowtest.Native{a, b} {
		ops := n.Ops()
		assert.Equal(t, []string{"show", "focus", "hide", "close"}, ops)
	}
	assert.True(t, task.started)
	assert.True(t, task.released)
	assert.Equal(t, []time.Duration{2000 * time.Millisecond}, f.slept)

	for _, info := range f.manager.Windows() {
		assert.True(t, info.MarkedForClose)
		assert.Equal(t, window.StateClosing, info.State)
	}

	_, err := f.manager.CreateWindow("late", window.Options{})
	assert.ErrorIs(t, err, window.ErrQuitting)
}

func TestQuitTaskStartFailureStillExits(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "main")

	f.manager.Quit(&fakeTask{startErr: errors.New("no installer")})

	assert.Equal(t, 1, f.platform.Exits())
	assert.Empty(t, f.slept)
}

type fakeTask struct {
	startErr error
	started  bool
	released bool
}

func (t *fakeTask) Start() error {
	if t.startErr != nil {
		return t.startErr
	}
	t.started = true
	return nil
}

func (t *fakeTask) Release() error {
	t.released = true
	return nil
}

func TestCrashReload(t *testing.T) {
	f := newFixture(t)
	crashed := f.record(events.EventWindowCrashed)
	native := f.loaded(t, "main")

	f.manager.NotifyCrashed("main", "exit status 2")
	require.Equal(t, []string{"main"}, *crashed)

	p := f.platform.LastPrompt()
	require.NotNil(t, p)
	assert.Equal(t, []string{"Reload", "Close"}, p.Prompt.Buttons)

	p.Answer(0)
	assert.Equal(t, 1, native.Count("reload"))
	state, _ := f.manager.State("main")
	assert.Equal(t, window.StateLoading, state)

	f.manager.NotifyLoaded("main")
	state, _ = f.manager.State("main")
	assert.Equal(t, window.StateVisible, state)
}

func TestCrashClose(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")

	f.manager.NotifyCrashed("main", "signal: killed")
	f.platform.LastPrompt().Answer(1)

	assert.Equal(t, 1, native.Count("close"))
	info, _ := f.manager.Window("main")
	assert.True(t, info.MarkedForClose)
}

func TestCrashOfClosingWindowIsClose(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "main")

	f.manager.CloseWindow("main")
	f.manager.NotifyCrashed("main", "exit status 1")

	assert.Empty(t, f.platform.Prompts())
	assert.Equal(t, 0, f.manager.Len())
}

func TestShowAndFocusRestoresMinimized(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")

	f.manager.NotifyMinimized("main", true)
	state, _ := f.manager.State("main")
	assert.Equal(t, window.StateHidden, state)

	assert.True(t, f.manager.ShowAndFocusWindow(""))
	ops := native.Ops()
	assert.Equal(t, []string{"restore", "focus"}, ops[len(ops)-2:])
	state, _ = f.manager.State("main")
	assert.Equal(t, window.StateVisible, state)
}

func TestHideWindow(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")

	assert.True(t, f.manager.HideWindow("main"))
	state, _ := f.manager.State("main")
	assert.Equal(t, window.StateHidden, state)
	assert.Equal(t, 1, native.Count("hide"))
}

func TestCurrentFocusWindow(t *testing.T) {
	f := newFixture(t)
	_, ok := f.manager.CurrentFocusWindow()
	assert.False(t, ok)

	f.loaded(t, "main")
	f.loaded(t, "main-0")

	name, _ := f.manager.CurrentFocusWindow()
	assert.Equal(t, "main", name, "falls back to main")

	focus := f.record(events.EventWindowFocus)
	f.manager.NotifyFocus("main-0", true)
	name, _ = f.manager.CurrentFocusWindow()
	assert.Equal(t, "main-0", name)
	assert.Equal(t, []string{"main-0"}, *focus)

	f.manager.NotifyFocus("main-0", false)
	name, _ = f.manager.CurrentFocusWindow()
	assert.Equal(t, "main-0", name, "last focused wins over main")
}

func TestOpenOrCreateWindow(t *testing.T) {
	f := newFixture(t)

	name, err := f.manager.OpenOrCreateWindow()
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	f.manager.NotifyLoaded("main")

	f.manager.HideWindow("main")
	name, err = f.manager.OpenOrCreateWindow()
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	state, _ := f.manager.State("main")
	assert.Equal(t, window.StateVisible, state)
	assert.Equal(t, 1, f.manager.Len())
}

func TestConfirmCreateAppWindow(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "main")

	result := f.manager.ConfirmCreateAppWindow()
	p := f.platform.LastPrompt()
	require.NotNil(t, p)
	p.Answer(0)

	assert.True(t, <-result)
	assert.Equal(t, []string{"main", "main-0"}, f.platform.Opened())
}

func TestConfirmCreateAppWindowDeclined(t *testing.T) {
	f := newFixture(t)
	f.loaded(t, "main")

	result := f.manager.ConfirmCreateAppWindow()
	f.platform.LastPrompt().Answer(1)

	assert.False(t, <-result)
	assert.Equal(t, 1, f.manager.Len())
}

func TestSecondInstanceWaitsForMainWindow(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CreateAppWindow(nil)
	require.NoError(t, err)

	f.manager.SecondInstance([]string{"xuanxuan"})
	assert.Empty(t, f.platform.Prompts(), "prompt deferred until main is loaded")

	f.manager.NotifyLoaded("main")
	require.Len(t, f.platform.Prompts(), 1)

	f.manager.SecondInstance(nil)
	assert.Len(t, f.platform.Prompts(), 2)
}

func TestSendToWindow(t *testing.T) {
	f := newFixture(t)
	native := f.loaded(t, "main")

	require.NoError(t, f.manager.SendToWindow("main", "lang-change", "zh-cn"))
	assert.Equal(t, []windowtest.Sent{{Channel: "lang-change", Args: []any{"zh-cn"}}}, native.Sent())

	err := f.manager.SendToWindow("ghost", "x")
	assert.ErrorIs(t, err, window.ErrWindowNotFound)
}

func TestSendToWindows(t *testing.T) {
	f := newFixture(t)
	a := f.loaded(t, "a")
	b := f.loaded(t, "b")

	f.manager.SendToWindows(ipc.ChannelOpenURL, "https://example.com")
	assert.Len(t, a.Sent(), 1)
	assert.Len(t, b.Sent(), 1)
}

func TestOnLoadAndOnClosedCallbacks(t *testing.T) {
	f := newFixture(t)
	var got []string
	_, err := f.manager.CreateWindow("chat", window.Options{
		OnLoad:   func(name string) { got = append(got, "load:"+name) },
		OnClosed: func(name string) { got = append(got, "closed:"+name) },
	})
	require.NoError(t, err)

	f.manager.NotifyLoaded("chat")
	f.manager.NotifyClosed("chat")
	assert.Equal(t, []string{"load:chat", "closed:chat"}, got)
}

func TestConcurrentClosesQuitOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		platform := windowtest.NewPlatform()
		bus := events.NewEventBus(nil)
		m := window.NewManager(window.ManagerOptions{Platform: platform, Bus: bus, Sleep: func(time.Duration) {}})

		var wg sync.WaitGroup
		var mu sync.Mutex
		quitEvents := 0
		bus.On(events.EventAppQuit, func(...any) {
			mu.Lock()
			quitEvents++
			mu.Unlock()
		})

		var names []string
		for i := 0; i < 6; i++ {
			name, err := m.CreateAppWindow(nil)
			require.NoError(t, err)
			m.NotifyLoaded(name)
			names = append(names, name)
		}

		start := make(chan struct{})
		for i, name := range names {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				<-start
				if i%2 == 0 {
					m.CloseWindow(name)
				}
				m.NotifyClosed(name)
			}(i, name)
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, platform.Exits(), "round %d", round)
		mu.Lock()
		assert.Equal(t, 1, quitEvents, "round %d", round)
		mu.Unlock()
		assert.Equal(t, 0, m.Len())
	}
}

// Whatever order windows are created and closed in, quit fires exactly once,
// and only after the last open window has closed.
func TestQuitFiresOnceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		platform := windowtest.NewPlatform()
		m := window.NewManager(window.ManagerOptions{Platform: platform, Sleep: func(time.Duration) {}})

		n := rapid.IntRange(1, 8).Draw(t, "windows")
		names := make([]string, n)
		for i := range names {
			name, err := m.CreateAppWindow(nil)
			if err != nil {
				t.Fatalf("CreateAppWindow: %v", err)
			}
			names[i] = name
			m.NotifyLoaded(name)
		}

		order := rapid.Permutation(names).Draw(t, "order")
		for i, name := range order {
			if rapid.Bool().Draw(t, "mark") {
				m.CloseWindow(name)
			}
			m.NotifyClosed(name)
			if i < len(order)-1 && platform.Exits() != 0 && m.Len() > 0 {
				// Remaining windows may all be marked; then quitting early is correct.
				for _, info := range m.Windows() {
					if !info.MarkedForClose {
						t.Fatalf("quit while %s still open", info.Name)
					}
				}
			}
		}

		if platform.Exits() != 1 {
			t.Fatalf("Exit called %d times, want 1", platform.Exits())
		}
	})
}

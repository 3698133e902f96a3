package events

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func TestOnEmitOrder(t *testing.T) {
	eb := NewEventBus(nil)

	var got []string
	eb.On("lang-change", func(args ...any) { got = append(got, "first:"+args[0].(string)) })
	eb.On("lang-change", func(args ...any) { got = append(got, "second:"+args[0].(string)) })
	eb.On("other", func(args ...any) { got = append(got, "other") })

	if n := eb.Emit("lang-change", "zh-cn"); n != 2 {
		t.Errorf("Expected 2 listeners invoked, got %d", n)
	}
	want := []string{"first:zh-cn", "second:zh-cn"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}

func TestEmitWithoutListeners(t *testing.T) {
	eb := NewEventBus(nil)
	if n := eb.Emit("nobody"); n != 0 {
		t.Errorf("Expected 0, got %d", n)
	}
}

func TestSameListenerTwiceGetsTwoIDs(t *testing.T) {
	eb := NewEventBus(nil)

	calls := 0
	fn := func(args ...any) { calls++ }
	id1 := eb.On("e", fn)
	id2 := eb.On("e", fn)
	if id1 == id2 {
		t.Fatal("Expected distinct subscription ids")
	}

	eb.Emit("e")
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}

	eb.Off(id1)
	eb.Emit("e")
	if calls != 3 {
		t.Errorf("Expected 3 calls after removing one, got %d", calls)
	}
}

func TestOffUnknownID(t *testing.T) {
	eb := NewEventBus(nil)
	if eb.Off("missing") {
		t.Error("Expected Off of unknown id to report false")
	}
}

func TestOffMultiple(t *testing.T) {
	eb := NewEventBus(nil)
	id1 := eb.On("a", func(args ...any) {})
	id2 := eb.On("b", func(args ...any) {})

	if !eb.Off(id1, id2, "missing") {
		t.Error("Expected Off to report removal")
	}
	if eb.ListenerCount("a") != 0 || eb.ListenerCount("b") != 0 {
		t.Error("Expected all listeners removed")
	}
}

func TestOnceReentrantEmit(t *testing.T) {
	eb := NewEventBus(nil)

	calls := 0
	eb.Once("e", func(args ...any) {
		calls++
		eb.Emit("e")
	})

	eb.Emit("e")
	eb.Emit("e")
	if calls != 1 {
		t.Errorf("Expected once listener to fire exactly once, got %d", calls)
	}
	if eb.ListenerCount("e") != 0 {
		t.Errorf("Expected once listener removed, %d remain", eb.ListenerCount("e"))
	}
}

func TestOnceConcurrentEmit(t *testing.T) {
	eb := NewEventBus(nil)

	var mu sync.Mutex
	calls := 0
	eb.Once("e", func(args ...any) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Emit("e")
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("Expected exactly one delivery, got %d", calls)
	}
}

func TestSubscribeDuringEmitTakesEffectNextTime(t *testing.T) {
	eb := NewEventBus(nil)

	added := 0
	eb.On("e", func(args ...any) {
		eb.On("e", func(args ...any) { added++ })
	})

	eb.Emit("e")
	if added != 0 {
		t.Errorf("Listener added during emit must not run in the same emit, ran %d times", added)
	}
	eb.Emit("e")
	if added != 1 {
		t.Errorf("Expected added listener to run on next emit, ran %d times", added)
	}
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	eb := NewEventBus(nil)

	var second SubscriptionID
	secondCalls := 0
	eb.On("e", func(args ...any) { eb.Off(second) })
	second = eb.On("e", func(args ...any) { secondCalls++ })

	// Removal applies from the next emission.
	eb.Emit("e")
	if secondCalls != 1 {
		t.Errorf("Expected snapshot delivery, got %d", secondCalls)
	}
	eb.Emit("e")
	if secondCalls != 1 {
		t.Errorf("Expected no delivery after removal, got %d", secondCalls)
	}
}

func TestPanickingListenerIsolated(t *testing.T) {
	eb := NewEventBus(nil)

	after := 0
	eb.On("e", func(args ...any) { panic("boom") })
	eb.On("e", func(args ...any) { after++ })

	if n := eb.Emit("e"); n != 2 {
		t.Errorf("Expected 2 invoked, got %d", n)
	}
	if after != 1 {
		t.Errorf("Expected later listener to run, got %d", after)
	}
	if eb.FailedListenerCount() != 1 {
		t.Errorf("Expected 1 failed listener, got %d", eb.FailedListenerCount())
	}
}

func TestClose(t *testing.T) {
	eb := NewEventBus(nil)
	calls := 0
	eb.On("e", func(args ...any) { calls++ })

	eb.Close()
	eb.Close() // second close is a no-op

	eb.Emit("e")
	eb.On("e", func(args ...any) { calls++ })
	eb.Emit("e")
	if calls != 0 {
		t.Errorf("Expected no deliveries after Close, got %d", calls)
	}
}

func TestDebugTracing(t *testing.T) {
	eb := NewEventBus(nil)
	eb.SetDebug(true)
	id := eb.On("e", func(args ...any) {})
	eb.Emit("e", 1, "two")
	if !eb.Has(id) {
		t.Error("Expected subscription to be registered")
	}
}

// Registering n listeners and removing a subset leaves exactly the rest, and
// they still fire in registration order.
func TestOnOffProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		eb := NewEventBus(nil)

		n := rapid.IntRange(0, 20).Draw(t, "n")
		var order []int
		ids := make([]SubscriptionID, n)
		for i := 0; i < n; i++ {
			i := i
			ids[i] = eb.On("e", func(args ...any) { order = append(order, i) })
		}

		removed := make(map[int]bool)
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(t, "remove") {
				eb.Off(ids[i])
				removed[i] = true
			}
		}

		eb.Emit("e")

		var want []int
		for i := 0; i < n; i++ {
			if !removed[i] {
				want = append(want, i)
			}
		}
		if len(order) != len(want) {
			t.Fatalf("invoked %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("invoked %v, want %v", order, want)
			}
		}
		if eb.ListenerCount("e") != len(want) {
			t.Fatalf("ListenerCount = %d, want %d", eb.ListenerCount("e"), len(want))
		}
	})
}

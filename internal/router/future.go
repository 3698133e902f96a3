package router

import "sync"

// Future is a value that becomes available later. It resolves or rejects
// exactly once; later calls are ignored.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// NewFuture creates a pending future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the future with v.
func (f *Future) Resolve(v any) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

// Reject completes the future with err.
func (f *Future) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome. Only meaningful after Done is closed.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// FromChannel resolves with the first value received from ch.
func FromChannel[T any](ch <-chan T) *Future {
	f := NewFuture()
	go func() {
		v, ok := <-ch
		if !ok {
			f.Reject(ErrNoResult)
			return
		}
		f.Resolve(v)
	}()
	return f
}

package window

import (
	"slices"
	"time"
)

// Handle is the registry record of one window. Mutated only under the
// manager's lock.
type Handle struct {
	Name           string
	Native         Native
	State          State
	IsMain         bool
	MarkedForClose bool
	Options        Options

	focused         bool
	minimized       bool
	crashed         bool
	loadedEarly     bool
	lastClosePrompt time.Time
}

func (h *Handle) info() Info {
	return Info{
		Name:           h.Name,
		State:          h.State,
		IsMain:         h.IsMain,
		MarkedForClose: h.MarkedForClose,
		Focused:        h.focused,
		Minimized:      h.minimized,
	}
}

// open reports whether the window counts toward keeping the app alive.
func (h *Handle) open() bool {
	return h.State != StateClosed && !h.MarkedForClose
}

// Registry maps window names to handles, remembering creation order.
type Registry struct {
	windows map[string]*Handle
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{windows: make(map[string]*Handle)}
}

// Add registers h. Names are unique.
func (r *Registry) Add(h *Handle) error {
	if _, ok := r.windows[h.Name]; ok {
		return ErrWindowExists
	}
	r.windows[h.Name] = h
	r.order = append(r.order, h.Name)
	return nil
}

// Get looks up a window by name.
func (r *Registry) Get(name string) (*Handle, bool) {
	h, ok := r.windows[name]
	return h, ok
}

// Remove drops a window. Unknown names are ignored.
func (r *Registry) Remove(name string) {
	if _, ok := r.windows[name]; !ok {
		return
	}
	delete(r.windows, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
}

// Handles returns all handles in creation order.
func (r *Registry) Handles() []*Handle {
	out := make([]*Handle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.windows[name])
	}
	return out
}

// Len returns the number of registered windows.
func (r *Registry) Len() int {
	return len(r.windows)
}

// Main returns the main window, if one is registered.
func (r *Registry) Main() (*Handle, bool) {
	for _, name := range r.order {
		if h := r.windows[name]; h.IsMain {
			return h, true
		}
	}
	return nil, false
}

// OpenCount counts windows that are neither closed nor marked for close.
func (r *Registry) OpenCount() int {
	n := 0
	for _, h := range r.windows {
		if h.open() {
			n++
		}
	}
	return n
}

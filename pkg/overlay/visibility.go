package overlay

import "sync"

// VisibilitySource reports host-surface visibility transitions.
type VisibilitySource interface {
	Visible() bool
	// Subscribe registers fn for transitions and returns the function that
	// removes exactly that registration.
	Subscribe(fn func(visible bool)) (unsubscribe func())
}

// Signal is a VisibilitySource fed by the host. It notifies only on
// transitions.
type Signal struct {
	mu        sync.Mutex
	visible   bool
	next      int
	listeners map[int]func(bool)
}

// NewSignal returns a signal in the given initial state.
func NewSignal(visible bool) *Signal {
	return &Signal{visible: visible, listeners: make(map[int]func(bool))}
}

func (s *Signal) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *Signal) Subscribe(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Set records the new state and notifies listeners if it changed.
func (s *Signal) Set(visible bool) {
	s.mu.Lock()
	if s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}

// Listeners returns the number of active subscriptions.
func (s *Signal) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

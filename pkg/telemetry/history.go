package telemetry

// History is a fixed-capacity FIFO. Pushing into a full history drops the
// oldest sample.
type History[T any] struct {
	buf   []T
	start int
	n     int
}

// NewHistory returns a history holding at most capacity samples. A capacity
// below one is treated as one.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{buf: make([]T, capacity)}
}

func (h *History[T]) Push(v T) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History[T]) Len() int { return h.n }
func (h *History[T]) Cap() int { return len(h.buf) }

// Values returns the samples oldest first.
func (h *History[T]) Values() []T {
	out := make([]T, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest sample.
func (h *History[T]) Last() (T, bool) {
	var zero T
	if h.n == 0 {
		return zero, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

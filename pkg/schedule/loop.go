// Package schedule is a cooperative timer queue pumped by the host's frame
// callback.
//
// Every callback registered on a Loop runs on the goroutine that calls Step,
// one at a time, so code driven by the loop never races with itself. Only
// successive firings of the same timer are ordered; independent timers are
// merely run in deadline order within a Step.
package schedule

import (
	"container/heap"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Loop holds pending timers and per-frame callbacks.
type Loop struct {
	clock clockwork.Clock

	mu      sync.Mutex
	timers  timerHeap
	seq     uint64
	frames  []frameFunc
	frameID uint64
}

type frameFunc struct {
	id uint64
	fn func(now time.Time)
}

// Timer is a handle to a scheduled callback.
type Timer struct {
	loop     *Loop
	fn       func()
	when     time.Time
	interval time.Duration
	seq      uint64
	index    int // heap index, -1 when not queued
}

// New creates a Loop reading time from clock.
func New(clock clockwork.Clock) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{clock: clock}
}

// Clock returns the loop's time source.
func (l *Loop) Clock() clockwork.Clock { return l.clock }

// AfterFunc runs fn once, on the first Step at or after now+d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	return l.schedule(d, 0, fn)
}

// Every runs fn each interval. Intervals missed because Step was not called
// are skipped rather than replayed.
func (l *Loop) Every(interval time.Duration, fn func()) *Timer {
	if interval <= 0 {
		panic("schedule: non-positive interval")
	}
	return l.schedule(interval, interval, fn)
}

// Post runs fn on the next Step. Safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.schedule(0, 0, fn)
}

func (l *Loop) schedule(d, interval time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	t := &Timer{
		loop:     l,
		fn:       fn,
		when:     l.clock.Now().Add(d),
		interval: interval,
		seq:      l.seq,
	}
	heap.Push(&l.timers, t)
	return t
}

// Stop cancels the timer. It reports whether the timer was still pending.
// Stopping a repeating timer from inside its own callback prevents the next
// firing.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	t.interval = 0
	if t.index < 0 {
		return false
	}
	heap.Remove(&l.timers, t.index)
	return true
}

// OnFrame registers fn to run at the start of every Step. The returned
// function removes the registration.
func (l *Loop) OnFrame(fn func(now time.Time)) (cancel func()) {
	l.mu.Lock()
	l.frameID++
	id := l.frameID
	l.frames = append(l.frames, frameFunc{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, f := range l.frames {
				if f.id == id {
					l.frames = append(l.frames[:i:i], l.frames[i+1:]...)
					return
				}
			}
		})
	}
}

// Step runs the frame callbacks, then every timer due at the current clock
// reading. It returns the number of timer callbacks that ran.
func (l *Loop) Step() int {
	now := l.clock.Now()

	l.mu.Lock()
	frames := make([]frameFunc, len(l.frames))
	copy(frames, l.frames)
	l.mu.Unlock()
	for _, f := range frames {
		f.fn(now)
	}

	ran := 0
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(now) {
			l.mu.Unlock()
			return ran
		}
		t := heap.Pop(&l.timers).(*Timer)
		fn := t.fn
		l.mu.Unlock()

		fn()
		ran++

		l.mu.Lock()
		if t.interval > 0 && t.index < 0 {
			next := t.when.Add(t.interval)
			if !next.After(now) {
				next = now.Add(t.interval)
			}
			t.when = next
			l.seq++
			t.seq = l.seq
			heap.Push(&l.timers, t)
		}
		l.mu.Unlock()
	}
}

// Pending returns the number of queued timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

package overlay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sudorandom/mandala-map/pkg/logging/logtest"
	"github.com/sudorandom/mandala-map/pkg/schedule"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeVisual struct {
	id       ID
	pos      Point
	moves    int
	releases int
}

func (v *fakeVisual) SetPosition(p Point) { v.pos = p; v.moves++ }
func (v *fakeVisual) Release()            { v.releases++ }

type fakeContainer struct {
	mu      sync.Mutex
	mounted map[Visual]int
	history []*fakeVisual
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{mounted: make(map[Visual]int)}
}

func (c *fakeContainer) Mount(v Visual) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted[v]++
	c.history = append(c.history, v.(*fakeVisual))
}

func (c *fakeContainer) Unmount(v Visual) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted[v]--
	if c.mounted[v] == 0 {
		delete(c.mounted, v)
	}
}

func (c *fakeContainer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mounted)
}

func (c *fakeContainer) all() []*fakeVisual {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*fakeVisual, len(c.history))
	copy(out, c.history)
	return out
}

// fakeMap is a plate carrée projection with a movable viewport.
type fakeMap struct {
	container Container
	scale     float64
	offset    Point
	projects  int
}

func newFakeMap() *fakeMap {
	return &fakeMap{container: newFakeContainer(), scale: 2}
}

func (m *fakeMap) Project(ll LngLat) Point {
	m.projects++
	return Point{X: ll.Lng*m.scale + m.offset.X, Y: -ll.Lat*m.scale + m.offset.Y}
}

func (m *fakeMap) MountContainer() Container { return m.container }

func (m *fakeMap) pan(dx, dy float64) {
	m.offset.X += dx
	m.offset.Y += dy
}

func fakeVisuals(id ID, _ LngLat) Visual { return &fakeVisual{id: id} }

type harness struct {
	clock     *clockwork.FakeClock
	loop      *schedule.Loop
	m         *fakeMap
	container *fakeContainer
	signal    *Signal
	logs      *logtest.Recorder
	mgr       *Manager
}

func newHarness(cfg Config) (*harness, error) {
	clock := clockwork.NewFakeClockAt(epoch)
	h := &harness{
		clock:  clock,
		loop:   schedule.New(clock),
		m:      newFakeMap(),
		signal: NewSignal(true),
		logs:   &logtest.Recorder{},
	}
	h.container = h.m.container.(*fakeContainer)
	mgr, err := New(cfg, Deps{
		Map:        h.m,
		Loop:       h.loop,
		Visuals:    fakeVisuals,
		Visibility: h.signal,
		Heap:       telemetry.HeapFunc(func() (telemetry.HeapStats, bool) { return telemetry.HeapStats{}, false }),
		Logger:     h.logs,
	})
	if err != nil {
		return nil, err
	}
	h.mgr = mgr
	return h, nil
}

// advance moves the clock forward in steps, pumping the loop after each.
func (h *harness) advance(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		h.clock.Advance(step)
		h.loop.Step()
	}
}

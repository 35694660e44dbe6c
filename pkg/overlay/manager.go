package overlay

import (
	"sync"
	"time"

	"github.com/sudorandom/mandala-map/pkg/logging"
	"github.com/sudorandom/mandala-map/pkg/metrics"
	"github.com/sudorandom/mandala-map/pkg/schedule"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

// Deps are the collaborators a Manager is wired to.
type Deps struct {
	Map     Map
	Loop    *schedule.Loop
	Visuals VisualFactory

	// Visibility is optional; without it the surface is always visible.
	Visibility VisibilitySource
	// Heap is optional; without it memory sampling is unsupported.
	Heap   telemetry.HeapSource
	Logger logging.Logger
}

// Stats is a point-in-time view of the manager's counters.
type Stats struct {
	Live      int
	Max       int
	Placed    int
	Rejected  int
	Evicted   int
	SyncTicks int
	Active    bool
}

// Manager ties the registry, sync loop, sweeper, visibility gate and
// telemetry sampler together.
type Manager struct {
	cfg        Config
	m          Map
	loop       *schedule.Loop
	registry   *Registry
	sampler    *telemetry.Sampler
	visibility VisibilitySource
	logger     logging.Logger

	mu          sync.Mutex
	started     bool
	closed      bool
	active      bool
	gen         uint64
	syncTimer   *schedule.Timer
	sweepTimer  *schedule.Timer
	unsubscribe func()
	placed      int
	rejected    int
	evicted     int
	ticks       int
}

// New validates cfg and deps and builds a stopped Manager. Any error here is
// fatal for the caller: nothing has been scheduled or mounted.
func New(cfg Config, deps Deps) (*Manager, error) {
	if deps.Map == nil {
		return nil, ErrNoMap
	}
	container := deps.Map.MountContainer()
	if container == nil {
		return nil, ErrNoMountContainer
	}
	if deps.Loop == nil {
		return nil, ErrNoLoop
	}
	if deps.Visuals == nil {
		return nil, ErrNoVisualFactory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Manager{
		cfg:        cfg,
		m:          deps.Map,
		loop:       deps.Loop,
		registry:   NewRegistry(cfg.MaxInstances, container, deps.Visuals, deps.Loop.Clock()),
		sampler:    telemetry.NewSampler(cfg.Telemetry, deps.Loop, deps.Heap, logger),
		visibility: deps.Visibility,
		logger:     logger,
	}, nil
}

// Start schedules the sweeper and sampler and, if the surface is visible,
// the sync loop. Calling Start twice, or after Close, does nothing.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.sweepTimer = m.loop.Every(m.cfg.CleanupInterval, m.sweep)
	m.mu.Unlock()

	m.sampler.Start()

	visible := true
	if m.visibility != nil {
		unsubscribe := m.visibility.Subscribe(m.SetVisible)
		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()
		visible = m.visibility.Visible()
	}

	m.logger.Info("overlay manager started",
		logging.Int("max_instances", m.cfg.MaxInstances),
		logging.Duration("update_interval", m.cfg.UpdateInterval),
		logging.Duration("cleanup_interval", m.cfg.CleanupInterval),
		logging.Duration("retention", m.cfg.Retention),
		logging.Bool("visible", visible),
	)
	m.SetVisible(visible)
}

// SetVisible is the visibility gate. Hiding clears the active flag so the
// sync loop stops rescheduling itself; showing sets it and restarts the loop.
func (m *Manager) SetVisible(visible bool) {
	if visible {
		m.resume()
	} else {
		m.suspend()
	}
}

func (m *Manager) resume() {
	m.mu.Lock()
	if m.closed || !m.started || m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.gen++
	gen := m.gen
	m.syncTimer = m.loop.AfterFunc(0, func() { m.tick(gen) })
	m.mu.Unlock()

	metrics.SyncLoopRunning.Set(1)
	m.logger.Debug("sync loop resumed")
}

func (m *Manager) suspend() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	if m.syncTimer != nil {
		m.syncTimer.Stop()
		m.syncTimer = nil
	}
	m.mu.Unlock()

	metrics.SyncLoopRunning.Set(0)
	m.logger.Debug("sync loop suspended")
}

// tick re-projects every anchor and schedules the next tick. A tick from an
// older generation, or one that finds the loop inactive, does nothing and
// does not reschedule.
func (m *Manager) tick(gen uint64) {
	m.mu.Lock()
	if !m.active || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	start := time.Now()
	m.registry.ForEach(func(e Entity) {
		e.Visual.SetPosition(m.m.Project(e.Anchor))
	})
	metrics.SyncTickDuration.Observe(time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	if m.active && gen == m.gen {
		m.syncTimer = m.loop.AfterFunc(m.cfg.UpdateInterval, func() { m.tick(gen) })
	}
}

func (m *Manager) sweep() {
	now := m.loop.Clock().Now()
	removed := 0
	m.registry.ForEach(func(e Entity) {
		if e.Age(now) >= m.cfg.Retention && m.registry.Remove(e.ID) {
			removed++
		}
	})
	live := m.registry.Len()
	metrics.OverlaysLive.Set(float64(live))
	if removed == 0 {
		return
	}

	m.mu.Lock()
	m.evicted += removed
	m.mu.Unlock()
	metrics.OverlaysEvicted.Add(float64(removed))
	m.logger.Info("swept expired overlays", logging.Int("removed", removed), logging.Int("live", live))
}

// Place admits an overlay anchored at anchor. A full registry yields
// ErrAdmissionRejected, logged as a warning; the caller may ignore it.
func (m *Manager) Place(anchor LngLat) (ID, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	id, err := m.registry.Place(anchor, m.m.Project(anchor))
	if err != nil {
		m.mu.Lock()
		m.rejected++
		m.mu.Unlock()
		metrics.OverlaysRejected.Inc()
		m.logger.Warn("overlay placement rejected",
			logging.String("anchor", anchor.String()),
			logging.Int("live", m.registry.Len()),
			logging.Int("max", m.registry.Max()),
		)
		return "", err
	}

	m.mu.Lock()
	m.placed++
	m.mu.Unlock()
	metrics.OverlaysPlaced.Inc()
	metrics.OverlaysLive.Set(float64(m.registry.Len()))
	m.logger.Debug("overlay placed", logging.String("id", string(id)), logging.String("anchor", anchor.String()))
	return id, nil
}

// Remove evicts one overlay ahead of the sweeper. Absent ids are ignored.
func (m *Manager) Remove(id ID) bool {
	ok := m.registry.Remove(id)
	if ok {
		metrics.OverlaysLive.Set(float64(m.registry.Len()))
	}
	return ok
}

// Close stops every schedule, detaches the visibility listener and releases
// all visuals. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.active = false
	if m.syncTimer != nil {
		m.syncTimer.Stop()
		m.syncTimer = nil
	}
	if m.sweepTimer != nil {
		m.sweepTimer.Stop()
		m.sweepTimer = nil
	}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.sampler.Stop()
	released := m.registry.Clear()

	metrics.SyncLoopRunning.Set(0)
	metrics.OverlaysLive.Set(0)
	m.logger.Info("overlay manager closed", logging.Int("released", released))
}

// Active reports whether the sync loop is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) Len() int { return m.registry.Len() }

// Get returns a copy of the overlay with the given id.
func (m *Manager) Get(id ID) (Entity, bool) { return m.registry.Get(id) }

// Snapshot returns copies of the live overlays in creation order.
func (m *Manager) Snapshot() []Entity { return m.registry.Snapshot() }

func (m *Manager) Sampler() *telemetry.Sampler { return m.sampler }

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Live:      m.registry.Len(),
		Max:       m.registry.Max(),
		Placed:    m.placed,
		Rejected:  m.rejected,
		Evicted:   m.evicted,
		SyncTicks: m.ticks,
		Active:    m.active,
	}
}

// Package telemetry samples frame cadence and heap pressure and reports
// threshold crossings. Everything it reports is advisory: the sampler never
// returns an error and never touches overlay state.
package telemetry

import (
	"math"
	"sync"
	"time"

	"github.com/sudorandom/mandala-map/pkg/logging"
	"github.com/sudorandom/mandala-map/pkg/metrics"
	"github.com/sudorandom/mandala-map/pkg/schedule"
)

// LowFPSThreshold is the frame rate below which a warning is raised,
// regardless of the configured target.
const LowFPSThreshold = 30

const bytesPerMB = 1 << 20

// Config holds the sampler's options.
type Config struct {
	TargetFPS      int
	FPSHistory     int
	MemoryHistory  int
	MemoryInterval time.Duration
	MemoryWarning  float64
	MemoryCritical float64
}

func DefaultConfig() Config {
	return Config{
		TargetFPS:      60,
		FPSHistory:     60,
		MemoryHistory:  60,
		MemoryInterval: 2 * time.Second,
		MemoryWarning:  0.5,
		MemoryCritical: 0.8,
	}
}

// MemorySample is one heap reading in megabytes.
type MemorySample struct {
	Timestamp time.Time
	UsedMB    int
	TotalMB   int
	LimitMB   int
}

// Usage is used/limit, or zero when the limit is unknown.
func (m MemorySample) Usage() float64 {
	if m.LimitMB <= 0 {
		return 0
	}
	return float64(m.UsedMB) / float64(m.LimitMB)
}

// Level classifies a memory reading against the thresholds.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Classify maps a usage ratio to a Level.
func (c Config) Classify(usage float64) Level {
	switch {
	case usage > c.MemoryCritical:
		return LevelCritical
	case usage > c.MemoryWarning:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Sampler runs the frame-rate and memory samplers on a schedule.Loop.
type Sampler struct {
	cfg    Config
	loop   *schedule.Loop
	heap   HeapSource
	logger logging.Logger

	mu          sync.Mutex
	fps         *History[int]
	memory      *History[MemorySample]
	frames      int
	windowStart time.Time
	cancelFrame func()
	memTimer    *schedule.Timer
	unsupported bool
	running     bool
}

// NewSampler builds a sampler. heap may be nil, in which case memory sampling
// is reported unsupported on Start.
func NewSampler(cfg Config, loop *schedule.Loop, heap HeapSource, logger logging.Logger) *Sampler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Sampler{
		cfg:    cfg,
		loop:   loop,
		heap:   heap,
		logger: logger,
		fps:    NewHistory[int](cfg.FPSHistory),
		memory: NewHistory[MemorySample](cfg.MemoryHistory),
	}
}

// Start registers the frame callback and, when heap metrics are available,
// the memory interval.
func (s *Sampler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.windowStart = time.Time{}
	s.frames = 0
	s.mu.Unlock()

	cancel := s.loop.OnFrame(s.frame)

	supported := false
	if s.heap != nil {
		_, supported = s.heap.Heap()
	}

	s.mu.Lock()
	s.cancelFrame = cancel
	if supported {
		s.memTimer = s.loop.Every(s.cfg.MemoryInterval, s.sampleMemory)
	} else if !s.unsupported {
		s.unsupported = true
		s.mu.Unlock()
		s.logger.Warn("memory sampling unsupported: heap metrics unavailable")
		return
	}
	s.mu.Unlock()
}

// Stop removes the frame callback and memory interval.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.cancelFrame != nil {
		s.cancelFrame()
		s.cancelFrame = nil
	}
	if s.memTimer != nil {
		s.memTimer.Stop()
		s.memTimer = nil
	}
}

func (s *Sampler) frame(now time.Time) {
	s.mu.Lock()
	// The frame that opens a window is not counted in it.
	if s.windowStart.IsZero() {
		s.windowStart = now
		s.mu.Unlock()
		return
	}
	s.frames++
	elapsed := now.Sub(s.windowStart)
	if elapsed < time.Second {
		s.mu.Unlock()
		return
	}
	fps := int(math.Round(float64(s.frames) * 1000 / float64(elapsed.Milliseconds())))
	s.fps.Push(fps)
	s.frames = 0
	s.windowStart = now
	s.mu.Unlock()

	metrics.FramesPerSecond.Set(float64(fps))
	if fps < LowFPSThreshold {
		metrics.TelemetryAlerts.WithLabelValues("low_fps").Inc()
		s.logger.Warn("low frame rate",
			logging.Int("fps", fps),
			logging.Int("threshold", LowFPSThreshold),
			logging.Int("target", s.cfg.TargetFPS),
		)
	}
}

func (s *Sampler) sampleMemory() {
	stats, ok := s.heap.Heap()
	if !ok {
		return
	}
	sample := MemorySample{
		Timestamp: s.loop.Clock().Now(),
		UsedMB:    toMB(stats.Used),
		TotalMB:   toMB(stats.Total),
		LimitMB:   toMB(stats.Limit),
	}

	s.mu.Lock()
	s.memory.Push(sample)
	s.mu.Unlock()

	usage := sample.Usage()
	metrics.HeapUsedMB.Set(float64(sample.UsedMB))
	metrics.HeapLimitMB.Set(float64(sample.LimitMB))
	metrics.HeapUsageRatio.Set(usage)

	fields := []logging.Field{
		logging.Int("used_mb", sample.UsedMB),
		logging.Int("total_mb", sample.TotalMB),
		logging.Int("limit_mb", sample.LimitMB),
		logging.Float64("usage", usage),
	}
	switch s.cfg.Classify(usage) {
	case LevelCritical:
		metrics.TelemetryAlerts.WithLabelValues("memory_critical").Inc()
		s.logger.Error("memory usage critical", fields...)
	case LevelWarning:
		metrics.TelemetryAlerts.WithLabelValues("memory_warning").Inc()
		s.logger.Warn("memory usage high", fields...)
	}
}

func toMB(b uint64) int {
	return int(math.Round(float64(b) / bytesPerMB))
}

// FPS returns the frame-rate history, oldest first.
func (s *Sampler) FPS() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps.Values()
}

// LastFPS returns the newest frame-rate sample.
func (s *Sampler) LastFPS() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps.Last()
}

// Memory returns the memory history, oldest first.
func (s *Sampler) Memory() []MemorySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Values()
}

// LastMemory returns the newest memory sample.
func (s *Sampler) LastMemory() (MemorySample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Last()
}

// MemorySupported reports whether the memory sampler is running.
func (s *Sampler) MemorySupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memTimer != nil
}

// Config returns the sampler's options.
func (s *Sampler) Config() Config { return s.cfg }

package overlay

import (
	"fmt"
	"time"

	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

// Config holds the manager's options. It is read once by New.
type Config struct {
	MaxInstances    int
	UpdateInterval  time.Duration
	CleanupInterval time.Duration
	// Retention is how long an entity may live before the sweeper removes it.
	// It defaults to CleanupInterval but is independent of it.
	Retention time.Duration
	Telemetry telemetry.Config
}

func DefaultConfig() Config {
	return Config{
		MaxInstances:    50,
		UpdateInterval:  50 * time.Millisecond,
		CleanupInterval: 5 * time.Second,
		Retention:       5 * time.Second,
		Telemetry:       telemetry.DefaultConfig(),
	}
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	switch {
	case c.MaxInstances < 1:
		return fmt.Errorf("%w: max instances must be positive, got %d", ErrInvalidConfig, c.MaxInstances)
	case c.UpdateInterval <= 0:
		return fmt.Errorf("%w: update interval must be positive, got %s", ErrInvalidConfig, c.UpdateInterval)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("%w: cleanup interval must be positive, got %s", ErrInvalidConfig, c.CleanupInterval)
	case c.Retention <= 0:
		return fmt.Errorf("%w: retention must be positive, got %s", ErrInvalidConfig, c.Retention)
	case c.Telemetry.MemoryInterval <= 0:
		return fmt.Errorf("%w: memory interval must be positive, got %s", ErrInvalidConfig, c.Telemetry.MemoryInterval)
	case c.Telemetry.MemoryWarning <= 0 || c.Telemetry.MemoryCritical <= c.Telemetry.MemoryWarning:
		return fmt.Errorf("%w: memory thresholds must satisfy 0 < warning < critical, got %.2f/%.2f",
			ErrInvalidConfig, c.Telemetry.MemoryWarning, c.Telemetry.MemoryCritical)
	}
	return nil
}

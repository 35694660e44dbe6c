// Package config loads the viewer's static options from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/sudorandom/mandala-map/pkg/overlay"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

// Duration is a time.Duration written as a string ("50ms", "5s") in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Overlay   OverlayConfig   `toml:"overlay"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Map       MapConfig       `toml:"map"`
	Feed      FeedConfig      `toml:"feed"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type OverlayConfig struct {
	MaxInstances    int      `toml:"max_instances"`
	UpdateInterval  Duration `toml:"update_interval"`
	CleanupInterval Duration `toml:"cleanup_interval"`
	Retention       Duration `toml:"retention"`
}

type TelemetryConfig struct {
	TargetFPS      int      `toml:"target_fps"`
	FPSHistory     int      `toml:"fps_history"`
	MemoryHistory  int      `toml:"memory_history"`
	MemoryInterval Duration `toml:"memory_interval"`
	MemoryWarning  float64  `toml:"memory_warning"`
	MemoryCritical float64  `toml:"memory_critical"`
	// MemoryLimitMB overrides the Go soft memory limit as the usage
	// denominator. Zero means use GOMEMLIMIT.
	MemoryLimitMB int `toml:"memory_limit_mb"`
	// FallbackLimitMB is the denominator when neither MemoryLimitMB nor
	// GOMEMLIMIT is set. Zero disables memory sampling in that case.
	FallbackLimitMB int `toml:"fallback_limit_mb"`
}

type MapConfig struct {
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	Scale     float64 `toml:"scale"`
	CenterLng float64 `toml:"center_lng"`
	CenterLat float64 `toml:"center_lat"`
	Zoom      float64 `toml:"zoom"`
	Pitch     float64 `toml:"pitch"`
	// WorldGeoJSON is a file path or http(s) URL of the land polygons.
	WorldGeoJSON string `toml:"world_geojson"`
}

type FeedConfig struct {
	URL     string `toml:"url"`
	GeoIPDB string `toml:"geoip_db"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// DefaultFallbackLimitMB is the heap budget assumed when no limit is set.
const DefaultFallbackLimitMB = 1024

// DefaultWorldGeoJSON is Natural Earth's 1:110m land layer.
const DefaultWorldGeoJSON = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_land.geojson"

// Default returns the built-in configuration.
func Default() Config {
	o := overlay.DefaultConfig()
	return Config{
		Overlay: OverlayConfig{
			MaxInstances:    o.MaxInstances,
			UpdateInterval:  Duration(o.UpdateInterval),
			CleanupInterval: Duration(o.CleanupInterval),
			Retention:       Duration(o.Retention),
		},
		Telemetry: TelemetryConfig{
			TargetFPS:       o.Telemetry.TargetFPS,
			FPSHistory:      o.Telemetry.FPSHistory,
			MemoryHistory:   o.Telemetry.MemoryHistory,
			MemoryInterval:  Duration(o.Telemetry.MemoryInterval),
			MemoryWarning:   o.Telemetry.MemoryWarning,
			MemoryCritical:  o.Telemetry.MemoryCritical,
			FallbackLimitMB: DefaultFallbackLimitMB,
		},
		Map: MapConfig{
			Width:        1920,
			Height:       1080,
			Scale:        300,
			Zoom:         1,
			WorldGeoJSON: DefaultWorldGeoJSON,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config %s: %s", path, strict.String())
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the options the overlay manager does not check itself.
func (c Config) Validate() error {
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		return fmt.Errorf("map size must be positive, got %dx%d", c.Map.Width, c.Map.Height)
	}
	if c.Map.Scale <= 0 {
		return fmt.Errorf("map scale must be positive, got %v", c.Map.Scale)
	}
	if c.Telemetry.MemoryLimitMB < 0 {
		return fmt.Errorf("memory_limit_mb must not be negative, got %d", c.Telemetry.MemoryLimitMB)
	}
	if c.Telemetry.FallbackLimitMB < 0 {
		return fmt.Errorf("fallback_limit_mb must not be negative, got %d", c.Telemetry.FallbackLimitMB)
	}
	return c.OverlayConfig().Validate()
}

// OverlayConfig converts to the manager's options.
func (c Config) OverlayConfig() overlay.Config {
	return overlay.Config{
		MaxInstances:    c.Overlay.MaxInstances,
		UpdateInterval:  c.Overlay.UpdateInterval.Std(),
		CleanupInterval: c.Overlay.CleanupInterval.Std(),
		Retention:       c.Overlay.Retention.Std(),
		Telemetry: telemetry.Config{
			TargetFPS:      c.Telemetry.TargetFPS,
			FPSHistory:     c.Telemetry.FPSHistory,
			MemoryHistory:  c.Telemetry.MemoryHistory,
			MemoryInterval: c.Telemetry.MemoryInterval.Std(),
			MemoryWarning:  c.Telemetry.MemoryWarning,
			MemoryCritical: c.Telemetry.MemoryCritical,
		},
	}
}

// HeapSource returns the runtime heap reader honouring MemoryLimitMB and
// FallbackLimitMB.
func (c Config) HeapSource() telemetry.HeapSource {
	return telemetry.RuntimeHeap{
		LimitBytes:    uint64(c.Telemetry.MemoryLimitMB) << 20,
		FallbackBytes: uint64(c.Telemetry.FallbackLimitMB) << 20,
	}
}

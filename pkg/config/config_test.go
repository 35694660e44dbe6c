package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/mandala-map/pkg/overlay"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_MatchesManagerDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, overlay.DefaultConfig(), cfg.OverlayConfig())
	assert.Equal(t, cfg.Overlay.CleanupInterval, cfg.Overlay.Retention)
}

func TestLoad_OverridesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[overlay]
max_instances = 12
update_interval = "100ms"
retention = "8s"

[telemetry]
memory_warning = 0.6
memory_critical = 0.9
memory_limit_mb = 512

[map]
center_lng = 13.4
center_lat = 52.5
zoom = 3.0

[feed]
url = "ws://localhost:9000/anchors"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Overlay.MaxInstances)
	assert.Equal(t, 100*time.Millisecond, cfg.Overlay.UpdateInterval.Std())
	assert.Equal(t, 8*time.Second, cfg.Overlay.Retention.Std())
	assert.Equal(t, 5*time.Second, cfg.Overlay.CleanupInterval.Std(), "default kept")
	assert.Equal(t, 0.6, cfg.Telemetry.MemoryWarning)
	assert.Equal(t, 1920, cfg.Map.Width, "default kept")
	assert.Equal(t, 52.5, cfg.Map.CenterLat)
	assert.Equal(t, "ws://localhost:9000/anchors", cfg.Feed.URL)

	heap, ok := cfg.HeapSource().(telemetry.RuntimeHeap)
	require.True(t, ok)
	assert.Equal(t, uint64(512)<<20, heap.LimitBytes)
	assert.Equal(t, uint64(DefaultFallbackLimitMB)<<20, heap.FallbackBytes, "default kept")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown key", "[overlay]\nmax_instancez = 3\n", "max_instancez"},
		{"bad duration", "[overlay]\nupdate_interval = \"soon\"\n", "invalid duration"},
		{"zero max", "[overlay]\nmax_instances = 0\n", "max instances must be positive"},
		{"inverted thresholds", "[telemetry]\nmemory_warning = 0.9\nmemory_critical = 0.5\n", "memory thresholds"},
		{"bad map", "[map]\nwidth = -1\n", "map size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config")
}

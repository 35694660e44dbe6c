package main

import (
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/mandala-map/pkg/config"
)

func parse(t *testing.T, args ...string) CLI {
	t.Helper()
	var cli CLI
	p, err := kong.New(&cli)
	require.NoError(t, err)
	_, err = p.Parse(args)
	require.NoError(t, err)
	return cli
}

func TestFlagsOverrideConfig(t *testing.T) {
	cli := parse(t,
		"--width=3840", "--height=2160", "--scale=600",
		"--max-instances=10", "--tps=30",
		"--feed-url=ws://localhost:8080/placements", "--geoip-db=city.mmdb",
		"--metrics-addr=:9090", "--log-level=debug", "--log-format=json",
	)
	cfg := config.Default()
	cli.apply(&cfg)

	assert.Equal(t, 3840, cfg.Map.Width)
	assert.Equal(t, 2160, cfg.Map.Height)
	assert.Equal(t, 600.0, cfg.Map.Scale)
	assert.Equal(t, 10, cfg.Overlay.MaxInstances)
	assert.Equal(t, 30, cfg.Telemetry.TargetFPS)
	assert.Equal(t, "ws://localhost:8080/placements", cfg.Feed.URL)
	assert.Equal(t, "city.mmdb", cfg.Feed.GeoIPDB)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestUnsetFlagsKeepConfig(t *testing.T) {
	cli := parse(t)
	cfg := config.Default()
	cli.apply(&cfg)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 1280, cli.WindowWidth)
	assert.Equal(t, "data/cache", cli.CacheDir)
}

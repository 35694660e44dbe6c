// Package metrics holds the Prometheus collectors for the overlay manager
// and the telemetry sampler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Overlay lifecycle
var (
	// OverlaysLive tracks the current registry population.
	OverlaysLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_overlays_live",
			Help: "Overlays currently mounted on the map",
		},
	)

	// OverlaysPlaced counts admitted placements.
	OverlaysPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mandala_overlays_placed_total",
			Help: "Overlays admitted into the registry",
		},
	)

	// OverlaysRejected counts placements refused by admission control.
	OverlaysRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mandala_overlays_rejected_total",
			Help: "Placements rejected because the registry was full",
		},
	)

	// OverlaysEvicted counts overlays removed by the sweeper.
	OverlaysEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mandala_overlays_evicted_total",
			Help: "Overlays removed after exceeding the retention window",
		},
	)

	// SyncTickDuration tracks how long one projection sync pass takes.
	SyncTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mandala_sync_tick_duration_seconds",
			Help:    "Duration of a projection sync tick",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05},
		},
	)

	// SyncLoopRunning is 1 while the projection sync loop is scheduled.
	SyncLoopRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_sync_loop_running",
			Help: "Whether the projection sync loop is active (1) or suspended (0)",
		},
	)
)

// Telemetry
var (
	FramesPerSecond = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_frames_per_second",
			Help: "Most recent frame rate sample",
		},
	)

	HeapUsedMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_heap_used_megabytes",
			Help: "Heap in use at the last memory sample",
		},
	)

	HeapLimitMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_heap_limit_megabytes",
			Help: "Heap limit at the last memory sample",
		},
	)

	HeapUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_heap_usage_ratio",
			Help: "Heap used divided by heap limit",
		},
	)

	// TelemetryAlerts counts advisory notifications by kind (low_fps, memory_warning, memory_critical).
	TelemetryAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mandala_telemetry_alerts_total",
			Help: "Threshold crossings reported by the telemetry sampler",
		},
		[]string{"kind"},
	)
)

// Placement feed
var (
	// FeedMessages counts feed messages by outcome (accepted, invalid, unresolved).
	FeedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mandala_feed_messages_total",
			Help: "Placement feed messages by outcome",
		},
		[]string{"result"},
	)

	FeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mandala_feed_connected",
			Help: "Whether the placement feed websocket is connected",
		},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mandala_feed_reconnects_total",
			Help: "Failed feed connection attempts",
		},
	)
)

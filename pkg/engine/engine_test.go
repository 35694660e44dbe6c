package engine

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/mandala-map/pkg/config"
	"github.com/sudorandom/mandala-map/pkg/logging/logtest"
	"github.com/sudorandom/mandala-map/pkg/mapview"
	"github.com/sudorandom/mandala-map/pkg/overlay"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

func newTestEngine(t *testing.T, mutate func(*Options)) (*Engine, *clockwork.FakeClock, *logtest.Recorder) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := &logtest.Recorder{}
	opts := Options{
		Config: config.Default(),
		Clock:  clock,
		Logger: rec,
		Heap: telemetry.HeapFunc(func() (telemetry.HeapStats, bool) {
			return telemetry.HeapStats{Used: 100 << 20, Total: 200 << 20, Limit: 1000 << 20}, true
		}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	e.Start()
	t.Cleanup(e.Close)
	return e, clock, rec
}

func click(e *Engine, p overlay.Point) {
	e.step(mapview.InputState{Cursor: p, Pressed: true, JustPressed: true}, true, false)
	e.step(mapview.InputState{Cursor: p, Released: true}, true, false)
}

func TestEngine_ClickPlacesOverlay(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	center := overlay.Point{X: float64(e.Width) / 2, Y: float64(e.Height) / 2}

	click(e, center)

	require.Equal(t, 1, e.Manager.Len())
	ent := e.Manager.Snapshot()[0]
	assert.InDelta(t, 0, ent.Anchor.Lng, 1e-6)
	assert.InDelta(t, 0, ent.Anchor.Lat, 1e-6)
}

func TestEngine_ClickOffGlobeIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	click(e, overlay.Point{X: 0, Y: 0})
	assert.Equal(t, 0, e.Manager.Len())
}

func TestEngine_ClickRespectsCapacity(t *testing.T) {
	e, _, rec := newTestEngine(t, func(o *Options) { o.Config.Overlay.MaxInstances = 1 })
	center := overlay.Point{X: float64(e.Width) / 2, Y: float64(e.Height) / 2}

	click(e, center)
	click(e, center)

	assert.Equal(t, 1, e.Manager.Len())
	assert.Equal(t, 1, e.Manager.Stats().Rejected)
	assert.NotEmpty(t, rec.Level("warn"))
}

func TestEngine_FocusGatesSync(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	assert.True(t, e.Manager.Active())

	e.step(mapview.InputState{}, false, false)
	assert.False(t, e.Manager.Active())

	e.step(mapview.InputState{}, true, false)
	assert.True(t, e.Manager.Active())
}

func TestEngine_AlwaysVisibleIgnoresFocus(t *testing.T) {
	e, _, _ := newTestEngine(t, func(o *Options) { o.AlwaysVisible = true })
	e.step(mapview.InputState{}, false, false)
	assert.True(t, e.Manager.Active())
}

func TestEngine_OverlaysExpire(t *testing.T) {
	e, clock, _ := newTestEngine(t, nil)
	click(e, overlay.Point{X: float64(e.Width) / 2, Y: float64(e.Height) / 2})
	require.Equal(t, 1, e.Manager.Len())

	for i := 0; i < 100; i++ {
		clock.Advance(50 * time.Millisecond)
		e.step(mapview.InputState{}, true, false)
	}
	assert.Equal(t, 0, e.Manager.Len())
}

func TestEngine_CaptureKeyArmsCapture(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	e.step(mapview.InputState{}, true, true)
	assert.True(t, e.captureNext)
}

func TestEngine_Layout(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	w, h := e.Layout(640, 480)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestNewEngine_Errors(t *testing.T) {
	cfg := config.Default()
	_, err := NewEngine(Options{Config: cfg, WorldGeoJSON: []byte("{")})
	assert.Error(t, err)

	cfg.Overlay.MaxInstances = 0
	_, err = NewEngine(Options{Config: cfg})
	assert.ErrorIs(t, err, overlay.ErrInvalidConfig)
}

func TestStatusLines(t *testing.T) {
	st := Status{
		Stats:           overlay.Stats{Live: 50, Max: 50, Active: false},
		FPS:             []int{60, 24},
		MemorySupported: true,
		HaveMemory:      true,
		Memory:          telemetry.MemorySample{UsedMB: 850, LimitMB: 1000},
		MemoryLevel:     telemetry.LevelCritical,
		Center:          overlay.LngLat{Lng: 13.4, Lat: 52.5},
		Zoom:            2,
		Pitch:           30,
	}
	lines := statusLines(st)
	require.Len(t, lines, 5)

	assert.Equal(t, statusLine{"OVERLAYS", "50/50", ColorWarn}, lines[0])
	assert.Equal(t, statusLine{"FPS", "24", ColorCritical}, lines[1])
	assert.Equal(t, statusLine{"HEAP", "850/1000 MB (85%)", ColorCritical}, lines[2])
	assert.Equal(t, statusLine{"SYNC", "paused", ColorWarn}, lines[3])
	assert.Equal(t, "13.40, 52.50  z2.0  p30°", lines[4].Value)
}

func TestStatusLines_NoSamples(t *testing.T) {
	lines := statusLines(Status{Stats: overlay.Stats{Max: 50, Active: true}})
	assert.Equal(t, "0/50", lines[0].Value)
	assert.Equal(t, "--", lines[1].Value)
	assert.Equal(t, "n/a", lines[2].Value)
	assert.Equal(t, "running", lines[3].Value)

	lines = statusLines(Status{MemorySupported: true})
	assert.Equal(t, "--", lines[2].Value)
}

func TestSparkline(t *testing.T) {
	assert.Nil(t, sparkline([]int{60}, 10, 60, 0, 0, 100, 30))

	pts := sparkline([]int{0, 30, 60}, 3, 60, 10, 20, 100, 30)
	require.Len(t, pts, 3)
	assert.Equal(t, overlay.Point{X: 10, Y: 50}, pts[0])
	assert.Equal(t, overlay.Point{X: 60, Y: 35}, pts[1])
	assert.Equal(t, overlay.Point{X: 110, Y: 20}, pts[2])

	// newest value is pinned to the right edge
	pts = sparkline([]int{60, 60}, 5, 60, 0, 0, 100, 30)
	assert.Equal(t, 75.0, pts[0].X)
	assert.Equal(t, 100.0, pts[1].X)

	// values above the ceiling raise it
	pts = sparkline([]int{120, 60}, 2, 60, 0, 0, 100, 30)
	assert.Equal(t, 0.0, pts[0].Y)
	assert.Equal(t, 15.0, pts[1].Y)
}

func TestWritePNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	path, err := writePNG(dir, "manual", ts, img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mandala-20240506-070809.000-manual.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	r, _, _, _ := decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

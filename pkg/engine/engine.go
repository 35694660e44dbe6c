// Package engine hosts the map, the overlay manager and the HUD inside an
// ebiten game loop.
package engine

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/sudorandom/mandala-map/pkg/config"
	"github.com/sudorandom/mandala-map/pkg/logging"
	"github.com/sudorandom/mandala-map/pkg/mandala"
	"github.com/sudorandom/mandala-map/pkg/mapview"
	"github.com/sudorandom/mandala-map/pkg/overlay"
	"github.com/sudorandom/mandala-map/pkg/schedule"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

// CaptureKey saves the current frame as a PNG.
const CaptureKey = ebiten.KeyF12

type Options struct {
	Config config.Config
	Clock  clockwork.Clock
	Logger logging.Logger
	// WorldGeoJSON holds land polygons for the background. Without it the
	// map is drawn as plain ocean.
	WorldGeoJSON []byte
	// Heap overrides Config.HeapSource.
	Heap telemetry.HeapSource
	// AlwaysVisible ignores window focus, for headless rendering.
	AlwaysVisible   bool
	FrameCaptureDir string
}

type Engine struct {
	Width, Height int

	Map     *mapview.Map
	Loop    *schedule.Loop
	Manager *overlay.Manager

	// OnFrame, if set, is called with every rendered frame.
	OnFrame func(screen *ebiten.Image)

	FrameCaptureDir string

	clock         clockwork.Clock
	logger        logging.Logger
	visibility    *overlay.Signal
	alwaysVisible bool
	controller    *mapview.Controller
	background    *mapview.Background
	fontSource    *text.GoTextFaceSource
	monoSource    *text.GoTextFaceSource
	captureNext   bool
	quit          atomic.Bool
}

func NewEngine(opts Options) (*Engine, error) {
	cfg := opts.Config
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Heap == nil {
		opts.Heap = cfg.HeapSource()
	}

	m := mapview.New(cfg.Map.Width, cfg.Map.Height, cfg.Map.Scale)
	m.SetView(overlay.LngLat{Lng: cfg.Map.CenterLng, Lat: cfg.Map.CenterLat}, cfg.Map.Zoom, cfg.Map.Pitch)

	var bg *mapview.Background
	if len(opts.WorldGeoJSON) > 0 {
		var err error
		if bg, err = mapview.LoadBackground(m, opts.WorldGeoJSON); err != nil {
			return nil, fmt.Errorf("load world geojson: %w", err)
		}
	}

	size := 48.0
	if cfg.Map.Width > 2000 {
		size = 96
	}
	loop := schedule.New(opts.Clock)
	visibility := overlay.NewSignal(true)
	mgr, err := overlay.New(cfg.OverlayConfig(), overlay.Deps{
		Map:  m,
		Loop: loop,
		Visuals: mandala.NewFactory(opts.Clock,
			mandala.WithSize(size),
			mandala.WithLifetime(cfg.Overlay.Retention.Std()),
		),
		Visibility: visibility,
		Heap:       opts.Heap,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	s, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	mono, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))

	return &Engine{
		Width:           cfg.Map.Width,
		Height:          cfg.Map.Height,
		Map:             m,
		Loop:            loop,
		Manager:         mgr,
		FrameCaptureDir: opts.FrameCaptureDir,
		clock:           opts.Clock,
		logger:          opts.Logger,
		visibility:      visibility,
		alwaysVisible:   opts.AlwaysVisible,
		controller:      mapview.NewController(m),
		background:      bg,
		fontSource:      s,
		monoSource:      mono,
	}, nil
}

// Start begins overlay management. Call before ebiten.RunGame.
func (e *Engine) Start() { e.Manager.Start() }

// Close tears the overlay manager down.
func (e *Engine) Close() { e.Manager.Close() }

// Place drops an overlay at a screen point. Points off the globe are ignored.
func (e *Engine) Place(p overlay.Point) (overlay.ID, error) {
	ll, ok := e.Map.Unproject(p)
	if !ok {
		return "", nil
	}
	return e.Manager.Place(ll)
}

// Quit makes the next Update end the game loop. Safe from any goroutine.
func (e *Engine) Quit() { e.quit.Store(true) }

func (e *Engine) Update() error {
	if e.quit.Load() {
		return ebiten.Termination
	}
	e.step(mapview.PollInput(), ebiten.IsFocused(), inpututil.IsKeyJustPressed(CaptureKey))
	return nil
}

// step is one frame of game logic: visibility, input, then the scheduler.
func (e *Engine) step(in mapview.InputState, focused, capture bool) {
	e.visibility.Set(focused || e.alwaysVisible)
	if p, clicked := e.controller.Apply(in); clicked {
		// rejection is logged by the manager
		_, _ = e.Place(p)
	}
	if capture {
		e.captureNext = true
	}
	e.Loop.Step()
}

func (e *Engine) Draw(screen *ebiten.Image) {
	now := e.clock.Now()
	if e.background != nil {
		e.background.Draw(screen)
	} else {
		screen.Fill(mapview.OceanColor)
	}
	e.Map.Layer().Draw(screen, now)
	e.drawStatus(screen)

	if e.OnFrame != nil {
		e.OnFrame(screen)
	}
	if e.captureNext {
		e.captureNext = false
		e.captureFrame(screen, "manual", now)
	}
}

func (e *Engine) Layout(w, h int) (int, int) { return e.Width, e.Height }

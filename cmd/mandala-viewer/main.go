package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/sudorandom/mandala-map/pkg/config"
	"github.com/sudorandom/mandala-map/pkg/engine"
	"github.com/sudorandom/mandala-map/pkg/feed"
	"github.com/sudorandom/mandala-map/pkg/geoip"
	"github.com/sudorandom/mandala-map/pkg/logging"
	"github.com/sudorandom/mandala-map/pkg/recorder"
	"github.com/sudorandom/mandala-map/pkg/utils"
)

type CLI struct {
	Config string `help:"TOML configuration file." type:"existingfile" optional:""`

	Headless     bool    `help:"Run without a local window; overlays keep animating regardless of focus."`
	Width        int     `help:"Internal rendering width."`
	Height       int     `help:"Internal rendering height."`
	Scale        float64 `help:"Globe radius in pixels at zoom 1."`
	WindowWidth  int     `help:"Initial window width (non-headless only)." default:"1280"`
	WindowHeight int     `help:"Initial window height (non-headless only)." default:"720"`
	TPS          int     `help:"Ticks per second (engine updates); also the target frame rate."`

	MaxInstances int    `help:"Maximum live overlays."`
	FeedURL      string `help:"Websocket URL streaming placements." name:"feed-url"`
	GeoIPDB      string `help:"MaxMind city database used to place IP messages." name:"geoip-db"`
	WorldGeoJSON string `help:"Land polygons, as a path or http(s) URL." name:"world-geojson"`
	CacheDir     string `help:"Directory for downloaded assets." default:"data/cache"`
	MetricsAddr  string `help:"Serve Prometheus metrics on this address, e.g. :9090."`
	CaptureDir   string `help:"Directory for frames saved with F12."`
	Record       string `help:"Encode every frame with ffmpeg to this file or rtmp:// URL."`
	LogLevel     string `help:"Log level (debug, info, warn, error)."`
	LogFormat    string `help:"Log format (console, json)."`
}

// apply copies flags that were set over cfg.
func (c *CLI) apply(cfg *config.Config) {
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt(&cfg.Map.Width, c.Width)
	setInt(&cfg.Map.Height, c.Height)
	if c.Scale > 0 {
		cfg.Map.Scale = c.Scale
	}
	setInt(&cfg.Overlay.MaxInstances, c.MaxInstances)
	setInt(&cfg.Telemetry.TargetFPS, c.TPS)
	setStr(&cfg.Feed.URL, c.FeedURL)
	setStr(&cfg.Feed.GeoIPDB, c.GeoIPDB)
	setStr(&cfg.Map.WorldGeoJSON, c.WorldGeoJSON)
	setStr(&cfg.Metrics.Addr, c.MetricsAddr)
	setStr(&cfg.Log.Level, c.LogLevel)
	setStr(&cfg.Log.Format, c.LogFormat)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("mandala-viewer"),
		kong.Description("Animated mandala overlays on an interactive world map."),
		kong.UsageOnError(),
	)

	cfg := config.Default()
	if cli.Config != "" {
		var err error
		cfg, err = config.Load(cli.Config)
		kctx.FatalIfErrorf(err)
	}
	cli.apply(&cfg)
	kctx.FatalIfErrorf(cfg.Validate())

	logger := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err := run(cli, cfg, logger); err != nil {
		logger.Error("viewer exited", logging.Err(err))
		os.Exit(1)
	}
}

func run(cli CLI, cfg config.Config, logger *logging.Zerolog) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mb := cfg.Telemetry.MemoryLimitMB; mb > 0 {
		debug.SetMemoryLimit(int64(mb) << 20)
	}

	var world []byte
	if cfg.Map.WorldGeoJSON != "" {
		fetcher := utils.NewFetcher(cli.CacheDir, logger.With("assets"))
		var err error
		if world, err = fetcher.ReadAll(ctx, cfg.Map.WorldGeoJSON); err != nil {
			logger.Warn("world map unavailable, drawing plain background", logging.Err(err))
		}
	}

	clock := clockwork.NewRealClock()
	eng, err := engine.NewEngine(engine.Options{
		Config:          cfg,
		Clock:           clock,
		Logger:          logger.With("overlay"),
		WorldGeoJSON:    world,
		AlwaysVisible:   cli.Headless,
		FrameCaptureDir: cli.CaptureDir,
	})
	if err != nil {
		return err
	}
	eng.Start()
	defer eng.Close()

	if cli.Record != "" {
		rec, err := recorder.Start(ctx, recorder.Options{
			Width:  cfg.Map.Width,
			Height: cfg.Map.Height,
			FPS:    cfg.Telemetry.TargetFPS,
			Output: cli.Record,
		}, logger.With("recorder"))
		if err != nil {
			return err
		}
		defer rec.Close()
		eng.OnFrame = rec.Frame
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", logging.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
		defer srv.Close()
	}

	if cfg.Feed.URL != "" {
		var locator geoip.Locator
		if cfg.Feed.GeoIPDB != "" {
			r, err := geoip.Open(cfg.Feed.GeoIPDB)
			if err != nil {
				return err
			}
			defer r.Close()
			locator = r
		}
		client := feed.New(feed.Config{URL: cfg.Feed.URL}, eng.Loop, eng.Manager, locator, logger.With("feed"), clock)
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("placement feed stopped", logging.Err(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		eng.Quit()
	}()

	ebiten.SetTPS(cfg.Telemetry.TargetFPS)
	// The sweeper and sampler must keep running while the window is hidden.
	ebiten.SetRunnableOnUnfocused(true)
	if cli.Headless {
		logger.Info("running headless")
	} else {
		ebiten.SetWindowSize(cli.WindowWidth, cli.WindowHeight)
		ebiten.SetWindowTitle("Mandala Map")
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	return ebiten.RunGame(eng)
}

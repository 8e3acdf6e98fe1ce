package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fogleman/gg"

	"github.com/security-somanos/blockchain-center/internal/config"
	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
	"github.com/security-somanos/blockchain-center/land"
	"github.com/security-somanos/blockchain-center/model"
	"github.com/security-somanos/blockchain-center/overlay"
	"github.com/security-somanos/blockchain-center/scene"
	"github.com/security-somanos/blockchain-center/scene/raster"
	"github.com/security-somanos/blockchain-center/tessellate"
	"github.com/security-somanos/blockchain-center/timectrl"
)

type renderConfig struct {
	Globe    model.Options
	LandPath string
	Out      string
	Width    int
	Height   int
	Ratio    float64
	Duration time.Duration
	Tick     time.Duration
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides "+config.ConfigPathEnvVar+")")
	out := flag.String("out", "globe.png", "PNG file to write")
	width := flag.Int("width", 800, "viewport width in CSS pixels")
	height := flag.Int("height", 800, "viewport height in CSS pixels")
	ratio := flag.Float64("pixel-ratio", 1, "device pixel ratio (capped at 2)")
	duration := flag.Duration("duration", 2*time.Second, "how long the scene spins before the snapshot")
	tick := flag.Duration("tick", timectrl.DefaultInterval, "frame scheduler interval")
	tileDeg := flag.Float64("tile-deg", 0, "override globe.tile_deg")
	flag.Parse()

	if *configPath != "" {
		_ = os.Setenv(config.ConfigPathEnvVar, *configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	rc := renderConfig{
		Globe:    cfg.Globe,
		LandPath: cfg.Land.Path,
		Out:      *out,
		Width:    *width,
		Height:   *height,
		Ratio:    *ratio,
		Duration: *duration,
		Tick:     *tick,
	}
	if *tileDeg > 0 {
		rc.Globe.TileDeg = *tileDeg
	}

	err = render(ctx, rc, log)
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	if err != nil {
		log.Error(ctx, "render failed", logging.Err(err))
		os.Exit(1)
	}
}

// render mounts a live scene on a ticker-driven frame scheduler, lets it
// spin for rc.Duration and writes the final frame.
func render(ctx context.Context, rc renderConfig, log logging.Logger) error {
	src := land.Default()
	if rc.LandPath != "" {
		src = land.NewFileSource(rc.LandPath, land.WithLogger(log))
	}

	frames := timectrl.NewTickerScheduler(rc.Tick)
	engine := raster.NewEngine(overlay.StyleFromOptions(rc.Globe))
	m, err := scene.New(scene.Config{
		Options: rc.Globe,
		Engine:  engine,
		Host:    raster.NewHost(rc.Width, rc.Height, rc.Ratio),
		Frames:  frames,
		Land:    src,
		Layers:  &tessellate.Pipeline{Runner: tessellate.NewRunner(tessellate.WithRunnerLogger(log))},
		Logger:  log,
		OnProgress: func(p scene.Progress) {
			log.Debug(ctx, "loading", logging.Int("percent", p.Percent), logging.Bool("loading", p.Loading))
		},
	})
	if err != nil {
		return err
	}
	defer m.Dispose()

	frames.Start()
	defer frames.Stop()

	if err := m.Mount(ctx); err != nil {
		return err
	}

	fmt.Printf("Spinning globe: duration=%s, tick=%s, tile_deg=%g\n", rc.Duration, rc.Tick, rc.Globe.TileDeg)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rc.Duration):
	}

	frames.Stop()
	if err := m.RenderNow(); err != nil {
		return err
	}
	img := engine.Snapshot()
	if img == nil {
		return scene.ErrNotReady
	}
	if err := gg.SavePNG(rc.Out, img); err != nil {
		return fmt.Errorf("write %s: %w", rc.Out, err)
	}
	fmt.Printf("Wrote %s after %d frames (rotation %.3f rad)\n", rc.Out, m.Rendered(), m.RotationY())
	return nil
}

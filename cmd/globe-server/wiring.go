package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/security-somanos/blockchain-center/internal/api"
	"github.com/security-somanos/blockchain-center/internal/config"
	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
	"github.com/security-somanos/blockchain-center/land"
	"github.com/security-somanos/blockchain-center/tessellate"
)

// buildService assembles the land source, worker runner and layer cache
// behind an api.Service. The returned func releases the cache.
func buildService(ctx context.Context, cfg *config.Config, log logging.Logger, collector *observability.GlobeCollector) (*api.Service, func(), error) {
	src := land.Default()
	if cfg.Land.Path != "" {
		src = land.NewFileSource(cfg.Land.Path, land.WithLogger(log))
		land.SetDefault(src)
	}

	runnerOpts := []tessellate.RunnerOption{
		tessellate.WithWorkerTimeout(cfg.Workers.Timeout),
		tessellate.WithRunnerLogger(log),
		tessellate.WithRecorder(collector),
	}
	if cfg.Workers.MaxConcurrent > 0 {
		runnerOpts = append(runnerOpts, tessellate.WithSpawner(tessellate.NewBoundedSpawner(cfg.Workers.MaxConcurrent)))
	}

	cache, closeCache, err := newLayerCache(ctx, cfg.Cache, log)
	if err != nil {
		return nil, nil, err
	}

	pipeline := &tessellate.Pipeline{
		Cache:   cache,
		Runner:  tessellate.NewRunner(runnerOpts...),
		Metrics: collector,
	}
	svc := api.NewService(src, pipeline, cfg.Globe,
		api.WithLogger(log),
		api.WithMetrics(collector),
		api.WithSnapshotSize(cfg.Server.SnapshotWidth, cfg.Server.SnapshotHeight),
		api.WithTilePresets(cfg.Server.TilePresets...),
	)
	return svc, closeCache, nil
}

// newLayerCache returns the shared in-process cache, fronting Redis when
// an address is configured.
func newLayerCache(ctx context.Context, cfg config.CacheConfig, log logging.Logger) (tessellate.LayerCache, func(), error) {
	if cfg.RedisAddr == "" {
		return tessellate.SharedCache(), func() {}, nil
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info(ctx, "layer cache backed by redis",
		logging.String("addr", cfg.RedisAddr),
		logging.String("prefix", cfg.Prefix),
		logging.Duration("ttl", cfg.TTL),
	)
	cache := tessellate.Tiered{
		Local:  tessellate.SharedCache(),
		Remote: tessellate.NewRedisCache(rc, cfg.Prefix, cfg.TTL, log),
	}
	return cache, func() { _ = rc.Close() }, nil
}

// warmLayers builds the configured density and every preset so the
// first scene mount and API calls hit the cache.
func warmLayers(ctx context.Context, svc *api.Service, presets []float64, log logging.Logger) {
	for _, deg := range append([]float64{0}, presets...) {
		start := time.Now()
		layers, err := svc.Layers(ctx, deg)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn(ctx, "layer warm-up failed", logging.Float("tile_deg", deg), logging.Err(err))
			}
			return
		}
		if deg == 0 {
			deg = svc.Options().TileDeg
		}
		log.Info(ctx, "layer cache warmed",
			logging.Float("tile_deg", deg),
			logging.Int("edge_points", layers.Edge.Points()),
			logging.Int("fill_points", layers.Fill.Points()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

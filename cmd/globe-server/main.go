package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/security-somanos/blockchain-center/internal/api"
	"github.com/security-somanos/blockchain-center/internal/config"
	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides "+config.ConfigPathEnvVar+")")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	var grpcLis, httpLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr); err != nil {
			log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
			os.Exit(1)
		}
	}
	if cfg.Server.HTTPAddr != "" {
		if httpLis, err = net.Listen("tcp", cfg.Server.HTTPAddr); err != nil {
			log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.Server.HTTPAddr), logging.Err(err))
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, log, grpcLis, httpLis); err != nil {
		log.Error(ctx, "globe server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx ends. Either listener may be nil.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, grpcLis, httpLis net.Listener) error {
	collector, err := observability.NewGlobeCollector(nil)
	if err != nil {
		return err
	}

	svc, closeCache, err := buildService(ctx, cfg, log, collector)
	if err != nil {
		return err
	}
	defer closeCache()

	if cfg.Cache.Warm {
		go warmLayers(ctx, svc, cfg.Server.TilePresets, log)
	}

	errCh := make(chan error, 3)

	grpcServer := api.NewGRPCServer(svc)
	if grpcLis != nil {
		log.Info(ctx, "starting gRPC server", logging.String("addr", grpcLis.Addr().String()))
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- err
			}
		}()
	}

	var httpServer *http.Server
	if httpLis != nil {
		httpServer = &http.Server{
			Handler:           api.NewRouter(svc),
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}
		log.Info(ctx, "starting HTTP server", logging.String("addr", httpLis.Addr().String()))
		go func() {
			if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	log.Info(context.Background(), "shutting down globe server")
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return err
}

func serveMetrics(addr string, collector *observability.GlobeCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

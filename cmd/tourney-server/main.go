package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Tournament/internal/builder"
	appcfg "github.com/park285/Cheese-Tournament/internal/config"
	"github.com/park285/Cheese-Tournament/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := builder.New(initCtx, cfg, reg)
	cancel()
	if err != nil {
		logger.Fatal("builder_failed", zap.Error(err))
	}

	if cfg.PreloadLive {
		n, err := deps.Registry.Preload(ctx)
		if err != nil {
			logger.Error("preload_failed", zap.Error(err))
		} else {
			logger.Info("preload_done", zap.Int("tournaments", n))
		}
	}

	if deps.Feed != nil {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		// reconnects on its own after a failed first dial
		if err := deps.Feed.Connect(cctx); err != nil {
			logger.Warn("result_feed_connect_failed", zap.Error(err))
		}
		cancel()
	}

	var metricsSrv *fasthttp.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = serveMetrics(cfg.MetricsAddr, reg)
	}

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	logger.Info("tourney_server_started", zap.Duration("tick", cfg.TickInterval), zap.String("metrics", cfg.MetricsAddr))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			deps.Registry.Tick(ctx)
		}
	}

	logger.Info("tourney_server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		if err := metricsSrv.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("metrics_shutdown_failed", zap.Error(err))
		}
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Warn("deps_close_failed", zap.Error(err))
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *fasthttp.Server {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/metrics":
				metricsHandler(ctx)
			case "/healthz":
				ctx.SetStatusCode(fasthttp.StatusOK)
				ctx.SetBodyString("ok")
			default:
				ctx.SetStatusCode(fasthttp.StatusNotFound)
			}
		},
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			obslog.L().Error("metrics_server_failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wamstack/wamstack/pkg/hub"
	"github.com/wamstack/wamstack/server/internal/alerts"
	"github.com/wamstack/wamstack/server/internal/api"
	"github.com/wamstack/wamstack/server/internal/config"
	"github.com/wamstack/wamstack/server/internal/metrics"
	"github.com/wamstack/wamstack/server/internal/receiver"
	"github.com/wamstack/wamstack/server/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("wam-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if l, err := config.ParseLevel(cfg.LogLevel); err == nil {
		level.Set(l)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"backend", cfg.Server.Storage.Backend,
		"capacity", cfg.Server.Storage.Capacity,
		"webhooks", len(cfg.Server.Alerts.Webhooks),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.Server.Storage)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Server.Storage.Backend, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// Push hub: every stored reading, alert and threshold change is fanned out
	// to SSE and WebSocket subscribers.
	h := hub.New(hub.Options{
		Keepalive: cfg.Server.Stream.Keepalive,
		OnCount:   func(n int) { metrics.Subscribers.Set(float64(n)) },
	})
	go h.Run(ctx)

	alertEngine := alerts.New(cfg.Server.Alerts)
	th := receiver.InitialThresholds(ctx, st, cfg.Server.Thresholds)
	rc := receiver.New(st, alertEngine, h, th)

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.New(api.Options{
			Receiver: rc,
			Store:    st,
			Alerts:   alertEngine,
			Hub:      h,
			Backend:  cfg.Server.Storage.Backend,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("wam-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}

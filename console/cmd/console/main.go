package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wamstack/wamstack/console/internal/analysis"
	"github.com/wamstack/wamstack/console/internal/api"
	"github.com/wamstack/wamstack/console/internal/config"
	"github.com/wamstack/wamstack/console/internal/engine"
	"github.com/wamstack/wamstack/console/internal/snapshot"
	"github.com/wamstack/wamstack/console/internal/stream"
	"github.com/wamstack/wamstack/pkg/hub"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("wam-console starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	level.Set(lvl)
	slog.Info("config loaded",
		"server_url", cfg.Console.ServerURL,
		"stream_url", cfg.Console.StreamURL,
		"listen_addr", cfg.Console.ListenAddr,
		"capacity", cfg.Console.Capacity,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var site atomic.Value
	site.Store(cfg.Console.Site)

	snap := snapshot.New(cfg.Console.ServerURL, nil)

	// View push: every coalesced refresh is published to /ws/view subscribers.
	var eng *engine.Engine
	views := hub.New(hub.Options{
		Initial: func() []byte {
			b, err := json.Marshal(eng.View())
			if err != nil {
				return nil
			}
			return b
		},
	})
	go views.Run(ctx)

	var onThresholds func()
	if cfg.Console.FollowServerThresholds {
		onThresholds = func() {
			fctx, fcancel := context.WithTimeout(ctx, 10*time.Second)
			defer fcancel()
			api.FollowThresholds(fctx, snap, eng) //nolint:errcheck
		}
	}

	eng = engine.New(engine.Options{
		Capacity:   cfg.Console.Capacity,
		Frame:      cfg.Console.FrameInterval,
		Thresholds: cfg.Console.Thresholds,
		Site:       func() string { return site.Load().(string) },
		OnRefresh: func(v engine.View) {
			if err := views.PublishJSON(v); err != nil {
				slog.Warn("view publish failed", "err", err)
			}
		},
		OnThresholds: onThresholds,
	})
	go eng.Run(ctx)

	// Local threshold and site edits apply live; other keys need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if err := eng.SetThresholds(updated.Console.Thresholds); err != nil {
				slog.Error("config hot-reload: thresholds rejected", "err", err)
			}
			site.Store(updated.Console.Site)
			if l, err := config.ParseLevel(updated.LogLevel); err == nil {
				level.Set(l)
			}
			slog.Info("config hot-reloaded", "site", updated.Console.Site)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	dialer, err := stream.DialerFor(cfg.Console.StreamURL)
	if err != nil {
		slog.Error("invalid stream url", "err", err)
		os.Exit(1)
	}
	live := stream.New(cfg.Console.StreamURL, dialer, eng)
	live.Start()

	// One snapshot fetch at startup. A failure is surfaced, not retried.
	go func() {
		fctx, fcancel := context.WithTimeout(ctx, 30*time.Second)
		defer fcancel()
		if n, err := api.Sync(fctx, snap, eng, cfg.Console.SnapshotLimit); err == nil {
			slog.Info("snapshot loaded", "readings", n)
		}
	}()

	handler := api.New(api.Options{
		Engine:        eng,
		Analyzer:      analysis.New(cfg.Console.ServerURL, nil),
		Snapshot:      snap,
		Views:         views,
		AnalysisRows:  cfg.Console.AnalysisRows,
		SnapshotLimit: cfg.Console.SnapshotLimit,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Console.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Console.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("wam-console shutting down")
	live.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/favgrab/api"
	"github.com/use-agent/favgrab/cache"
	"github.com/use-agent/favgrab/config"
	"github.com/use-agent/favgrab/engine"
	"github.com/use-agent/favgrab/metadata"
	"github.com/use-agent/favgrab/service"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("favgrab starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Fetch.Engine,
		"fetchTimeout", cfg.Fetch.Timeout,
	)

	// ── 3. Initialise fetch engine ──────────────────────────────────
	var eng engine.Engine
	switch cfg.Fetch.Engine {
	case "browser":
		rodEngine := engine.NewRodEngine(cfg.Browser, cfg.Fetch.BlockPrivate)
		rodEngine.Start()
		defer func() {
			if err := rodEngine.Close(); err != nil {
				slog.Warn("browser close failed", "error", err)
			}
		}()
		eng = rodEngine
	default:
		eng = engine.NewHTTPEngine(cfg.Fetch.MaxBodyBytes, cfg.Fetch.BlockPrivate)
	}

	// ── 4. Initialise extractor, cache and resolver ─────────────────
	extractor := metadata.Default()
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Stop()

	res := service.New(eng, extractor, cc, service.Options{
		Timeout:      cfg.Fetch.Timeout,
		BlockPrivate: cfg.Fetch.BlockPrivate,
	})
	slog.Info("metadata pipeline ready", "fields", extractor.Fields())

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router, err := api.NewRouter(cfg, res, startTime)
	if err != nil {
		slog.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight lookups are bounded by the fetch timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Fetch.Timeout+2*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("favgrab stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

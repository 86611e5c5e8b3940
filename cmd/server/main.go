package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/korjavin/nomnom/internal/api"
	"github.com/korjavin/nomnom/internal/cache"
	"github.com/korjavin/nomnom/internal/config"
	"github.com/korjavin/nomnom/internal/metrics"
	"github.com/korjavin/nomnom/internal/middleware"
	"github.com/korjavin/nomnom/internal/override"
	"github.com/korjavin/nomnom/internal/reference"
	"github.com/korjavin/nomnom/internal/resolver"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if len(cfg.APIKeys) == 0 {
		slog.Warn("API_KEYS not set, all requests will be accepted without authentication")
	}

	slog.Info("opening reference dataset", "data_dir", cfg.DataDir)
	ref, err := reference.OpenReadOnly(cfg.DataDir, logger)
	if err != nil {
		slog.Error("failed to open reference dataset", "error", err)
		os.Exit(1)
	}
	defer ref.Close()

	manifest, err := reference.ReadManifest(cfg.DataDir)
	if err != nil {
		slog.Warn("manifest not found or unreadable", "error", err)
		manifest = nil
	} else {
		slog.Info("manifest loaded",
			"schema_version", manifest.SchemaVersion,
			"product_count", manifest.ProductCount,
			"mode", manifest.Mode,
			"build_time", manifest.BuildTime,
		)
	}

	slog.Info("opening override store", "override_dir", cfg.OverrideDir)
	overrides, err := override.Open(cfg.OverrideDir)
	if err != nil {
		slog.Error("failed to open override store", "error", err)
		os.Exit(1)
	}
	defer overrides.Close()

	var c resolver.Cache
	if cfg.CachePath != "" {
		sq, err := cache.OpenSQLite(cfg.CachePath, nil)
		if err != nil {
			slog.Error("failed to open cache", "path", cfg.CachePath, "error", err)
			os.Exit(1)
		}
		defer sq.Close()
		c = sq
		slog.Info("using sqlite cache", "path", cfg.CachePath)
	} else {
		c = cache.NewMemory(nil)
		slog.Info("using in-memory cache")
	}

	reg := metrics.NewRegistry()
	engine := resolver.New(overrides, ref, c,
		resolver.WithLogger(logger),
		resolver.WithTTL(cfg.CacheTTL),
		resolver.WithMetrics(reg),
	)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, cfg.APIKeys, &api.Handler{Resolver: engine, Manifest: manifest, Logger: logger}, reg)

	// Middleware chain (outer to inner): Logging → CORS → RateLimit → mux
	handler := middleware.Chain(
		mux,
		middleware.Logging(logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rahimhussain95/DarkNet/internal/api"
	"github.com/rahimhussain95/DarkNet/internal/auth"
	"github.com/rahimhussain95/DarkNet/internal/catalog"
	"github.com/rahimhussain95/DarkNet/internal/metrics"
	"github.com/rahimhussain95/DarkNet/internal/pipeline"
	"github.com/rahimhussain95/DarkNet/internal/position"
	"github.com/rahimhussain95/DarkNet/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("DARKNET_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	catalogCfg, err := loadCatalogConfig(logger)
	if err != nil {
		logger.Error("invalid catalog configuration", "error", err)
		os.Exit(1)
	}
	client := catalog.NewClient(catalogCfg, logger)

	workers := loadWorkerCount(logger)
	aggregator := pipeline.NewAggregator(position.NewResolver(), workers, logger)

	refresh := func(ctx context.Context) ([]pipeline.Object, error) {
		records, err := client.FetchDebris(ctx)
		if err != nil {
			return nil, err
		}
		return aggregator.Aggregate(ctx, records, time.Now().UTC())
	}

	cacheCfg := loadCacheConfig(logger)
	snapshots := loadSnapshots(logger)
	debrisCache := store.New(cacheCfg, refresh, snapshots, logger)

	// Attempt to restore the last snapshot so restarts serve immediately.
	if snapshots != nil {
		entry, err := snapshots.LoadLatest()
		if err != nil {
			logger.Info("no debris snapshot found, starting cold", "error", err)
		} else {
			debrisCache.Restore(entry)
			logger.Info("restored debris snapshot",
				"objects", len(entry.Objects),
				"fetched_at", entry.FetchedAt.Format(time.RFC3339),
			)
		}
	}

	srv := api.NewServer(addr, logger, authCfg, debrisCache)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background refresh loop.
	go debrisCache.Start(ctx)

	// Background goroutine to update the cache age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := debrisCache.AgeSeconds()
				if age >= 0 {
					metrics.SetCacheAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "workers", workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("DARKNET_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("DARKNET_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("DARKNET_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("DARKNET_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadCatalogConfig(logger *slog.Logger) (catalog.Config, error) {
	cfg := catalog.Config{
		Username: os.Getenv("SPACE_TRACK_USER"),
		Password: os.Getenv("SPACE_TRACK_PASS"),
	}
	if cfg.Username == "" || cfg.Password == "" {
		return cfg, errors.New("SPACE_TRACK_USER and SPACE_TRACK_PASS are required")
	}

	if v := os.Getenv("DARKNET_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv("DARKNET_QUERY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_QUERY_LIMIT value, using default", "value", v, "default", 100)
		} else {
			cfg.Limit = n
		}
	}

	if v := os.Getenv("DARKNET_THROTTLE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_THROTTLE_MAX_ATTEMPTS value, using default", "value", v, "default", 3)
		} else {
			cfg.MaxAttempts = n
		}
	}

	if v := os.Getenv("DARKNET_THROTTLE_BACKOFF"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_THROTTLE_BACKOFF value, using default", "value", v, "default", 60)
		} else {
			cfg.ThrottleBackoff = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("DARKNET_UPSTREAM_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_UPSTREAM_RPM value, using default", "value", v, "default", 20)
		} else {
			cfg.RequestsPerMinute = n
		}
	}

	logger.Info("catalog config",
		"base_url", cfg.BaseURL,
		"limit", cfg.Limit,
		"max_attempts", cfg.MaxAttempts,
	)

	return cfg, nil
}

func loadCacheConfig(logger *slog.Logger) store.Config {
	cfg := store.Config{
		TTL:        time.Hour,
		StaleGrace: 30 * time.Minute,
	}

	if v := os.Getenv("DARKNET_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_CACHE_TTL value, using default", "value", v, "default", 3600)
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("DARKNET_STALE_GRACE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid DARKNET_STALE_GRACE value, using default", "value", v, "default", 1800)
		} else {
			cfg.StaleGrace = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("DARKNET_REFRESH_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_REFRESH_TIMEOUT value, using default", "value", v, "default", 300)
		} else {
			cfg.RefreshTimeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("DARKNET_REFRESH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_REFRESH_INTERVAL value, using cache TTL", "value", v)
		} else {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	logger.Info("cache config",
		"ttl_seconds", cfg.TTL.Seconds(),
		"stale_grace_seconds", cfg.StaleGrace.Seconds(),
	)

	return cfg
}

func loadWorkerCount(logger *slog.Logger) int {
	workers := runtime.NumCPU()
	if v := os.Getenv("DARKNET_PIPELINE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_PIPELINE_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	return workers
}

func loadSnapshots(logger *slog.Logger) *store.Snapshots {
	dir := os.Getenv("DARKNET_SNAPSHOT_DIR")
	if dir == "" {
		dir = "/tmp/darknet/debris"
	}
	if dir == "off" {
		logger.Info("debris snapshots disabled")
		return nil
	}

	maxFiles := 3
	if v := os.Getenv("DARKNET_SNAPSHOT_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid DARKNET_SNAPSHOT_MAX_FILES value, using default", "value", v, "default", maxFiles)
		} else {
			maxFiles = n
		}
	}

	logger.Info("snapshot config", "dir", dir, "max_files", maxFiles)
	return store.NewSnapshots(dir, maxFiles)
}

package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bazaarhq/catalog-import/internal/config"
	"github.com/bazaarhq/catalog-import/internal/importer"
	_ "github.com/bazaarhq/catalog-import/internal/importer/processors" // Register all import types
	"github.com/bazaarhq/catalog-import/internal/logging"
	"github.com/bazaarhq/catalog-import/internal/store/memory"
	"github.com/bazaarhq/catalog-import/internal/store/postgres"
	"github.com/bazaarhq/catalog-import/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Database.Store,
		"max_active_jobs", cfg.Import.MaxActiveJobs,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	var jobs importer.JobStore
	var stores importer.Stores

	switch strings.ToLower(cfg.Database.Store) {
	case "memory":
		jobs = memory.NewJobStore()
		stores = importer.Stores{
			Items:      memory.NewItemStore(),
			Variants:   memory.NewVariantStore(),
			Categories: memory.CategoryResolver{Name: cfg.Import.DefaultCategory},
		}
		slog.Info("using in-memory stores")
	default:
		pool, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		}

		jobs = postgres.NewJobStore(pool)
		stores = importer.Stores{
			Items:      postgres.NewItemStore(pool),
			Variants:   postgres.NewVariantStore(pool),
			Categories: postgres.NewCategoryResolver(pool, cfg.Import.DefaultCategory),
		}
	}

	service, err := importer.NewService(jobs, stores, importer.Options{
		MaxFileSize:    cfg.Import.MaxFileSize,
		MaxRows:        cfg.Import.MaxRows,
		MaxActiveJobs:  cfg.Import.MaxActiveJobs,
		CheckpointRows: cfg.Import.CheckpointRows,
		MaxErrorLog:    cfg.Import.MaxErrorLog,
		JobTimeout:     cfg.Import.JobTimeout,
		UploadsDir:     cfg.Import.UploadsDir,
	})
	if err != nil {
		slog.Error("failed to create import service", "error", err)
		os.Exit(1)
	}

	slog.Info("import types registered", "types", importer.RegisteredTypes())

	server := web.NewServer(service, cfg)

	// Background watchdog reaps jobs that died mid-run
	watchdogCtx, cancelWatchdog := context.WithCancel(context.Background())
	go service.StartWatchdog(watchdogCtx, importer.WatchdogConfig{
		MaxJobAge:     cfg.Watchdog.MaxJobAge,
		CheckInterval: cfg.Watchdog.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelWatchdog()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

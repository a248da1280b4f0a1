package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prism-lab/project-prism/internal/core/config"
	"github.com/prism-lab/project-prism/internal/core/logging"
	"github.com/prism-lab/project-prism/internal/metrics"
	"github.com/prism-lab/project-prism/internal/migrations"
	"github.com/prism-lab/project-prism/internal/pipeline"
	"github.com/prism-lab/project-prism/internal/projection"
	"github.com/prism-lab/project-prism/internal/server"
	"github.com/prism-lab/project-prism/internal/store"
	"github.com/prism-lab/project-prism/internal/store/clickhouse"
	"github.com/prism-lab/project-prism/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "prism.yaml", "Path to configuration file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	logger := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	slog.Info("Loaded config",
		"store_driver", cfg.Store.Driver,
		"views", len(cfg.ViewLoading.Repository.Views()),
		"scheduler_enabled", cfg.Scheduler.Enabled)

	// 3. Register Metrics
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Record Store
	var records store.RecordStore
	switch cfg.Store.Driver {
	case "postgres":
		adapter, err := postgres.NewAdapter(
			cfg.Store.DSN,
			cfg.Store.MaxOpenConns,
			cfg.Store.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize record store", "driver", "postgres", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()

		// 4.1. Run Database Migrations
		if err := migrations.RunMigrations(adapter.DB(), cfg.Store.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		records = adapter
	case "clickhouse":
		adapter, err := clickhouse.NewAdapter(
			cfg.Store.Addr,
			cfg.Store.Database,
			cfg.Store.Username,
			cfg.Store.Password,
		)
		if err != nil {
			slog.Error("Failed to initialize record store", "driver", "clickhouse", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()

		// The clickhouse schema is managed outside this service; the
		// embedded migrations are postgres-only.
		records = adapter
	default:
		slog.Error("Unsupported store driver", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	// 5. Initialize Pipeline Orchestrator
	orchestrator := pipeline.NewOrchestrator(records, pipeline.Options{
		ConfidenceZ:   cfg.Analytics.Forecast.ConfidenceZ,
		TopProducts:   cfg.Analytics.TopProducts,
		MaxIterations: cfg.Analytics.Segmentation.MaxIterations,
	})

	// 6. Initialize Projection (query API)
	views := cfg.ViewLoading.Repository
	projectionSvc := projection.NewService(orchestrator, views)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), records, cfg.Server.Mode)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start view refresh scheduler in background if enabled
	if cfg.Scheduler.Enabled {
		scheduler := pipeline.NewScheduler(
			cfg.Scheduler.RefreshInterval(),
			orchestrator,
			views,
			cfg.Scheduler.View,
		)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("View refresh scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

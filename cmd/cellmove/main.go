// Cellmove - risk checks and cell occupancy for moving a prisoner between cells.

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

	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/api"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/bus"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cellmove"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/cells"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/config"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/domain"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/sqlstore"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/telemetry"
	"github.com/ministryofjustice/hmpps-change-someones-cell-sub000/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	slog.Info("starting cellmove",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"upstream", cfg.Upstream.Driver,
		"eventbus", cfg.EventBus.Type,
		"worker", cfg.Worker.Enabled,
		"tracing", cfg.Tracing.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing, Version)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// Initialize upstream store
	store, err := sqlstore.New(cfg.Upstream)
	if err != nil {
		slog.Error("failed to initialize upstream store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("upstream store initialized", "driver", cfg.Upstream.Driver)

	if path := os.Getenv("CELLMOVE_FIXTURES"); path != "" {
		if err := store.LoadFixturesFile(ctx, path); err != nil {
			slog.Error("failed to load fixtures", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("fixtures loaded", "path", path)
	}

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	filters, err := cells.NewFilters()
	if err != nil {
		slog.Error("failed to compile cell filters", "error", err)
		os.Exit(1)
	}
	service := cellmove.NewService(store, filters)

	var busWorker *worker.Worker
	if cfg.Worker.Enabled {
		busWorker = worker.NewWorker(busImpl, service)
		if err := busWorker.Start(worker.Config{PrisonIDs: cfg.Worker.PrisonIDs}); err != nil {
			slog.Error("failed to start bus worker", "error", err)
			os.Exit(1)
		}
		slog.Info("bus worker started", "prison_count", len(cfg.Worker.PrisonIDs))
	}

	srv := api.NewServer(cfg.Server, service, busImpl, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("cellmove is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if busWorker != nil {
		if err := busWorker.Stop(); err != nil {
			slog.Error("failed to stop bus worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("cellmove shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  CELLMOVE")
	fmt.Println("  Cell move risk checks and occupancy")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Upstream: %s\n", cfg.Upstream.Driver)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET /prisoners/{prisonerNumber}/cell-move/consider-risks?cellId=  - Risk warnings for a move")
	fmt.Println("    GET /prisons/{prisonId}/cells                                     - Cells with capacity")
	fmt.Println("    GET /prisons/{prisonId}/cells/occupants                           - Cells with occupants")
	fmt.Println("    GET /health                                                       - Health check")
	fmt.Println()
}

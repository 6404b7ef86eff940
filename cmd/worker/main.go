// Package main is the entry point of the companion worker.
//
// The worker keeps companion levels in step with the learning platform for
// owners who have not opened their companion in a while. It shares storage,
// cache and event bus with the API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/alem-companion/config"
	"github.com/alem-hub/alem-companion/internal/app"
	"github.com/alem-hub/alem-companion/internal/infrastructure/scheduler"
	"github.com/alem-hub/alem-companion/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/alem-companion/internal/infrastructure/telemetry"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING AND TRACING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.String("service", cfg.App.Name+"-worker"))

	log.Info("starting companion worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"sync_interval", cfg.Scheduler.SyncLevelsInterval.String(),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.App.Name + "-worker",
		ServiceVersion: cfg.App.Version,
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.TracingEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE, CACHE, EVENT BUS, HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	// The worker only makes sense against shared storage.
	stack, err := app.Open(ctx, cfg, log, appLog, app.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing connections...")
		stack.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		JobTimeout: cfg.Scheduler.JobTimeout,
		RunOnStart: true,
	})

	syncJob := jobs.NewSyncPetLevelsJob(
		stack.Pets,
		stack.Commands.SyncLevel,
		stack.Bus,
		log,
		jobs.SyncPetLevelsConfig{BatchSize: cfg.Scheduler.SyncBatchSize},
	)

	if cfg.Scheduler.Enabled {
		if err := sched.Register(syncJob, scheduler.Every(cfg.Scheduler.SyncLevelsInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", syncJob.Name(), err)
		}
	} else {
		log.Warn("scheduler disabled, no jobs registered")
	}

	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success() || r.JobName != syncJob.Name() {
			return
		}
		if stats := syncJob.LastStats(); stats != nil && stats.Failed > 0 {
			log.Warn("level sync finished with failures",
				"failed", stats.Failed,
				"processed", stats.Processed,
			)
		}
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. START
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("companion worker is running")

	<-ctx.Done()
	log.Info("received shutdown signal")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracer shutdown error", "error", err)
	}

	log.Info("shutdown completed", "runs", len(sched.History(0)))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the structured logger. JSON in production, text otherwise.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

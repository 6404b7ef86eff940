// Package main is the entry point of the companion backend API.
//
// The API owns companions server side: it stores pets and their accessories,
// reconciles levels with the learning platform and serves the terminal client.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/alem-companion/config"
	"github.com/alem-hub/alem-companion/internal/app"
	"github.com/alem-hub/alem-companion/internal/infrastructure/telemetry"
	httpserver "github.com/alem-hub/alem-companion/internal/interface/http"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// devSecret signs tokens when AUTH_SECRET is unset in development.
const devSecret = "alem-companion-development-secret"

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	devToken := flag.String("dev-token", "", "print a token for the given login and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *devToken); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, devToken string) error {
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
	log := setupLogger(cfg, os.Stdout)
	appLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	}).With(logger.String("service", cfg.App.Name))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. TOKENS
	// ─────────────────────────────────────────────────────────────────────────
	secret := cfg.Auth.Secret
	if secret == "" {
		log.Warn("AUTH_SECRET not set, using the development secret")
		secret = devSecret
	}
	auth, err := httpserver.NewTokenAuthority(secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}

	if devToken != "" {
		token, err := auth.Issue(devToken)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	}

	log.Info("starting companion API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"addr", cfg.Server.Addr,
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.TracingEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. STORAGE, CACHE, EVENT BUS, HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	stack, err := app.Open(ctx, cfg, log, appLog, app.Options{
		AllowMemory: cfg.IsDevelopment(),
		Migrate:     true,
	})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing connections...")
		stack.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	checks := make(map[string]httpserver.HealthCheck)
	for name, check := range stack.HealthChecks() {
		checks[name] = check
	}

	server := httpserver.NewServer(httpserver.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, httpserver.Dependencies{
		CreatePet:       stack.Commands.CreatePet,
		RenamePet:       stack.Commands.RenamePet,
		DeletePet:       stack.Commands.DeletePet,
		SyncLevel:       stack.Commands.SyncLevel,
		SetAccessory:    stack.Commands.SetAccessory,
		GetPet:          stack.Queries.GetPet,
		ListAccessories: stack.Queries.ListAccessories,
		ListEquipped:    stack.Queries.ListEquipped,
		Auth:            auth,
		Checks:          checks,
		Logger:          appLog.With(logger.Component("http")),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. START
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()
	log.Info("companion API is running")

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracer shutdown error", "error", err)
	}

	bus := stack.Bus.Metrics()
	log.Info("shutdown completed",
		"events_published", bus.Published,
		"events_failed", bus.Failed,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the slog logger used by the infrastructure layer.
func setupLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch {
	case cfg.App.Debug:
		opts.Level = slog.LevelDebug
	case cfg.Observability.LogLevel == "warn":
		opts.Level = slog.LevelWarn
	case cfg.Observability.LogLevel == "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

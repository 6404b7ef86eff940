// Package main is the terminal companion client.
//
// The client hosts the companion engine against the backend API and renders
// it in the terminal. Logs go to a file because the UI owns the screen.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/alem-companion/config"
	"github.com/alem-hub/alem-companion/internal/application/eventhandler"
	"github.com/alem-hub/alem-companion/internal/engine"
	"github.com/alem-hub/alem-companion/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-companion/internal/infrastructure/petapi"
	"github.com/alem-hub/alem-companion/internal/interface/tui"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "companion: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Token == "" {
		return errors.New("COMPANION_TOKEN is not set, ask the API for a token first")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	level := logger.ParseLevel(cfg.LogLevel)
	appLog := logger.New(logger.Options{Output: logFile, Level: level})
	slogLevel := slog.LevelInfo
	if level == logger.LevelDebug {
		slogLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slogLevel}))
	slog.SetDefault(log)

	log.Info("starting companion client", "api", cfg.APIURL)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. BACKEND AND LOCAL EVENTS
	// ─────────────────────────────────────────────────────────────────────────
	backend := petapi.New(petapi.Config{
		BaseURL: cfg.APIURL,
		Token:   cfg.Token,
		Timeout: cfg.RequestTimeout,
		Logger:  log,
	})

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() { _ = bus.Close() }()

	if err := eventhandler.Register(bus, eventhandler.NewActivityLog(log), nil, nil); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	c := cfg.Companion
	input := engine.NewInputHub()
	eng := engine.New(backend, engine.Options{
		Config: engine.Config{
			DecayInterval:   c.DecayInterval,
			DecayHappiness:  c.DecayHappiness,
			DecayEnergy:     c.DecayEnergy,
			FeedEnergy:      c.FeedEnergy,
			PlayHappiness:   c.PlayHappiness,
			PlayEnergyCost:  c.PlayEnergyCost,
			LockDuration:    c.LockDuration,
			IdleAfter:       c.IdleAfter,
			SyncInterval:    c.SyncInterval,
			CryingThreshold: c.CryingThreshold,
			RequestTimeout:  cfg.RequestTimeout,
		},
		Logger:    appLog,
		Publisher: bus,
		Input:     input,
	})
	defer eng.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. UI
	// ─────────────────────────────────────────────────────────────────────────
	err = tui.Run(ctx, eng, input, tui.Options{RequestTimeout: cfg.RequestTimeout})
	log.Info("companion client stopped", "error", err)
	return err
}

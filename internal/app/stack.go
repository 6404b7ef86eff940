// Package app assembles the backend from configuration. cmd/api and
// cmd/worker share it so both processes see the same storage, cache, bus and
// command handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alem-hub/alem-companion/config"
	"github.com/alem-hub/alem-companion/internal/application/command"
	"github.com/alem-hub/alem-companion/internal/application/eventhandler"
	"github.com/alem-hub/alem-companion/internal/application/query"
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/internal/infrastructure/external/alem"
	"github.com/alem-hub/alem-companion/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-companion/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/alem-companion/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/alem-companion/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/alem-companion/pkg/circuitbreaker"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// Bus is the event bus the stack publishes to.
type Bus interface {
	shared.EventBus
	Metrics() messaging.MetricsSnapshot
	Close() error
}

// Commands groups the write handlers.
type Commands struct {
	CreatePet    *command.CreatePetHandler
	RenamePet    *command.RenamePetHandler
	DeletePet    *command.DeletePetHandler
	SyncLevel    *command.SyncLevelHandler
	SetAccessory *command.SetAccessoryHandler
}

// Queries groups the read handlers.
type Queries struct {
	GetPet          *query.GetPetHandler
	ListAccessories *query.ListAccessoriesHandler
	ListEquipped    *query.ListEquippedHandler
}

// Stack is the assembled backend.
type Stack struct {
	Pets        companion.Repository
	Accessories companion.AccessoryRepository
	Bus         Bus
	Platform    *alem.Client
	Activity    *eventhandler.ActivityLog

	Commands Commands
	Queries  Queries

	db     *postgres.Connection
	cache  *redis.Cache
	log    *slog.Logger
	closer []func()
}

// Options controls what Open may fall back to.
type Options struct {
	// AllowMemory keeps companions in memory when no database is configured.
	AllowMemory bool

	// Migrate applies pending schema migrations on start.
	Migrate bool
}

// Open connects storage and builds every handler. On error everything opened
// so far is closed again.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, appLog *logger.Logger, opts Options) (_ *Stack, err error) {
	s := &Stack{log: log}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	switch {
	case cfg.Database.URL != "":
		log.Info("connecting to database...")
		s.db, err = postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.onClose(s.db.Close)

		if opts.Migrate {
			if err = postgres.NewMigrator(s.db).Migrate(ctx); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		s.Pets = postgres.NewPetRepository(s.db)
		s.Accessories = postgres.NewAccessoryRepository(s.db)

	case opts.AllowMemory:
		log.Warn("DATABASE_URL not set, companions are kept in memory")
		s.Pets = memory.NewPetStore()
		s.Accessories = memory.NewAccessoryStore(memory.SeedCatalog())

	default:
		return nil, errors.New("DATABASE_URL is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		s.cache, err = redis.NewCache(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			if cfg.IsProduction() {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			s.cache, err = nil, nil
		} else {
			s.onClose(func() { _ = s.cache.Close() })
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus
	// ─────────────────────────────────────────────────────────────────────────
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = log
	if s.cache != nil {
		s.Bus, err = messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
			Client:         s.cache.Client(),
			LocalBusConfig: local,
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("start event bus: %w", err)
		}
	} else {
		s.Bus = messaging.NewInMemoryEventBus(local)
	}
	s.onClose(func() { _ = s.Bus.Close() })

	// ─────────────────────────────────────────────────────────────────────────
	// Learning platform
	// ─────────────────────────────────────────────────────────────────────────
	platform := alem.DefaultClientConfig(cfg.Alem.BaseURL)
	platform.APIKey = cfg.Alem.APIKey
	platform.Timeout = cfg.Alem.RequestTimeout
	platform.MaxAttempts = cfg.Alem.MaxRetries
	platform.RetryBaseDelay = cfg.Alem.RetryBaseDelay
	platform.RetryMaxDelay = cfg.Alem.RetryMaxDelay
	platform.BreakerThreshold = cfg.Alem.CircuitBreakerThreshold
	platform.BreakerTimeout = cfg.Alem.CircuitBreakerTimeout
	platform.BreakerHalfOpenMax = cfg.Alem.CircuitBreakerHalfOpenMax
	platform.RequestsPerSecond = cfg.Alem.RequestsPerSecond
	platform.Burst = cfg.Alem.Burst
	platform.Logger = log
	s.Platform = alem.NewClient(platform)

	// ─────────────────────────────────────────────────────────────────────────
	// Application layer
	// ─────────────────────────────────────────────────────────────────────────
	cmdDeps := command.Deps{
		Pets:        s.Pets,
		Accessories: s.Accessories,
		Publisher:   s.Bus,
		Logger:      appLog.With(logger.Component("command")),
	}
	qDeps := query.Deps{
		Pets:        s.Pets,
		Accessories: s.Accessories,
		Logger:      appLog.With(logger.Component("query")),
	}
	syncCfg := command.SyncLevelHandlerConfig{LockTTL: cfg.Scheduler.JobTimeout}

	var levels *redis.LevelCache
	if s.cache != nil {
		petCache := redis.NewPetCache(s.cache)
		levels = redis.NewLevelCache(s.cache, cfg.Alem.CacheTTL)
		cmdDeps.Cache = petCache
		qDeps.Cache = petCache
		syncCfg.Levels = levels
		syncCfg.Locker = s.cache
	}

	initial := companion.Vitals{Happiness: cfg.Companion.InitialHappiness, Energy: cfg.Companion.InitialEnergy}
	s.Commands = Commands{
		CreatePet:    command.NewCreatePetHandler(cmdDeps, initial),
		RenamePet:    command.NewRenamePetHandler(cmdDeps),
		DeletePet:    command.NewDeletePetHandler(cmdDeps),
		SyncLevel:    command.NewSyncLevelHandler(cmdDeps, s.Platform, syncCfg),
		SetAccessory: command.NewSetAccessoryHandler(cmdDeps),
	}
	s.Queries = Queries{
		GetPet:          query.NewGetPetHandler(qDeps),
		ListAccessories: query.NewListAccessoriesHandler(qDeps),
		ListEquipped:    query.NewListEquippedHandler(qDeps),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event handlers
	// ─────────────────────────────────────────────────────────────────────────
	s.Activity = eventhandler.NewActivityLog(log)
	var removed *eventhandler.OnCompanionRemoved
	if levels != nil {
		removed = eventhandler.NewOnCompanionRemoved(levels, log)
	}
	if err = eventhandler.Register(s.Bus, s.Activity, removed, eventhandler.NewOnSyncCompleted(log)); err != nil {
		return nil, fmt.Errorf("register event handlers: %w", err)
	}

	return s, nil
}

// HealthChecks returns one probe per dependency.
func (s *Stack) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"platform": func(context.Context) error {
			if state := s.Platform.BreakerState(); state == circuitbreaker.StateOpen {
				return fmt.Errorf("circuit breaker %s", state)
			}
			return nil
		},
	}
	if s.db != nil {
		checks["postgres"] = s.db.Ping
	}
	if s.cache != nil {
		checks["redis"] = s.cache.Ping
	}
	return checks
}

func (s *Stack) onClose(fn func()) {
	s.closer = append(s.closer, fn)
}

// Close releases everything in reverse order of acquisition.
func (s *Stack) Close() {
	for i := len(s.closer) - 1; i >= 0; i-- {
		s.closer[i]()
	}
	s.closer = nil
}


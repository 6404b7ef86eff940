package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC LEVEL COMMAND
// Reconciles the companion's level with the learner's platform level.
// The level only ever goes up; every crossed requirement unlocks accessories.
// ══════════════════════════════════════════════════════════════════════════════

var tracer = otel.Tracer("github.com/alem-hub/alem-companion/internal/application/command")

// ErrSyncInProgress is returned when another sync for the same owner holds the lock.
var ErrSyncInProgress = shared.NewDomainError("companion", "SyncLevel", shared.ErrServiceUnavailable, "a level sync is already running")

// SyncLevelCommand contains the data needed to sync one companion.
type SyncLevelCommand struct {
	OwnerID string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// SyncLevelResult describes what the reconciliation changed.
type SyncLevelResult struct {
	PetID     string
	OldLevel  companion.Level
	NewLevel  companion.Level
	LevelUps  int
	Unlocked  []companion.Accessory
	UserLevel companion.Level
	Events    []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// LevelSource is the progression authority.
type LevelSource interface {
	GetLearnerLevel(ctx context.Context, login string) (companion.Level, error)
}

// LevelCache remembers recently fetched levels. Any error is treated as a miss.
type LevelCache interface {
	GetLevel(ctx context.Context, login string) (companion.Level, error)
	SetLevel(ctx context.Context, login string, level companion.Level) error
}

// Locker takes short-lived named locks across processes.
type Locker interface {
	Lock(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncLevelHandlerConfig contains optional collaborators.
type SyncLevelHandlerConfig struct {
	Levels LevelCache
	Locker Locker

	// LockTTL bounds how long a crashed sync can block the owner.
	LockTTL time.Duration
}

// SyncLevelHandler handles the SyncLevelCommand.
type SyncLevelHandler struct {
	deps   Deps
	source LevelSource
	levels LevelCache
	locker Locker
	ttl    time.Duration
}

// NewSyncLevelHandler creates a new SyncLevelHandler.
func NewSyncLevelHandler(deps Deps, source LevelSource, cfg SyncLevelHandlerConfig) *SyncLevelHandler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &SyncLevelHandler{
		deps:   deps.withDefaults(),
		source: source,
		levels: cfg.Levels,
		locker: cfg.Locker,
		ttl:    cfg.LockTTL,
	}
}

// Handle executes the sync command.
func (h *SyncLevelHandler) Handle(ctx context.Context, cmd SyncLevelCommand) (result *SyncLevelResult, err error) {
	ctx, span := tracer.Start(ctx, "command.SyncLevel")
	span.SetAttributes(attribute.String("companion.owner_id", cmd.OwnerID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("companion.old_level", int(result.OldLevel)),
				attribute.Int("companion.new_level", int(result.NewLevel)),
				attribute.Int("companion.unlocked", len(result.Unlocked)),
			)
		}
		span.End()
	}()

	if cmd.OwnerID == "" {
		return nil, shared.WrapError("companion", "SyncLevel", shared.ErrEmptyValue, "owner is required", errOwnerRequired)
	}

	if h.locker != nil {
		release, err := h.locker.Lock(ctx, "sync:"+cmd.OwnerID, h.ttl)
		if err != nil {
			return nil, fmt.Errorf("sync_level: %w", errors.Join(ErrSyncInProgress, err))
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				h.deps.Logger.Warn("sync lock release failed", logger.OwnerID(cmd.OwnerID), logger.Err(rerr))
			}
		}()
	}

	pet, err := h.deps.Pets.GetByOwner(ctx, cmd.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("sync_level: %w", err)
	}

	userLevel, err := h.userLevel(ctx, cmd.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("sync_level: %w", err)
	}

	now := h.deps.Now()
	change := pet.RaiseTo(userLevel, now)
	result = &SyncLevelResult{
		PetID:     pet.ID,
		OldLevel:  change.Old,
		NewLevel:  change.New,
		LevelUps:  change.Ups(),
		UserLevel: userLevel,
	}
	if !change.Raised() {
		return result, nil
	}

	catalog, err := h.deps.Accessories.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync_level: catalog: %w", err)
	}
	if err := h.deps.Pets.RaiseLevel(ctx, pet.ID, change.New, now); err != nil {
		return nil, fmt.Errorf("sync_level: %w", err)
	}
	h.deps.invalidate(ctx, pet.OwnerID)

	result.Unlocked = catalog.UnlockedBetween(change.Old, change.New)
	result.Events = append(result.Events, shared.NewLevelUpEvent(pet.ID, int(change.Old), int(change.New), now))
	for _, a := range result.Unlocked {
		result.Events = append(result.Events, shared.NewAccessoryUnlockedEvent(pet.ID, a.ID, a.Name, int(a.LevelRequired), now))
	}

	h.deps.Logger.Info("companion leveled up",
		logger.OwnerID(pet.OwnerID),
		logger.Int("old_level", int(change.Old)),
		logger.Int("new_level", int(change.New)),
		logger.Int("unlocked", len(result.Unlocked)),
		logger.String("correlation_id", cmd.CorrelationID),
	)
	h.deps.publish(result.Events...)

	return result, nil
}

// userLevel reads through the level cache into the platform.
func (h *SyncLevelHandler) userLevel(ctx context.Context, login string) (companion.Level, error) {
	if h.levels != nil {
		if level, err := h.levels.GetLevel(ctx, login); err == nil && level.IsValid() {
			return level, nil
		}
	}

	level, err := h.source.GetLearnerLevel(ctx, login)
	if err != nil {
		return 0, err
	}

	if h.levels != nil {
		if err := h.levels.SetLevel(ctx, login, level); err != nil {
			h.deps.Logger.Debug("level cache write failed", logger.OwnerID(login), logger.Err(err))
		}
	}
	return level, nil
}

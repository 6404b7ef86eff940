// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-companion/internal/application/command"
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC PET LEVELS JOB
// ══════════════════════════════════════════════════════════════════════════════

// LevelSyncer raises one owner's companion to their platform level.
type LevelSyncer interface {
	Handle(ctx context.Context, cmd command.SyncLevelCommand) (*command.SyncLevelResult, error)
}

// SyncPetLevelsConfig contains configuration for the sync job.
type SyncPetLevelsConfig struct {
	// BatchSize is the page size used when listing companions.
	BatchSize int

	// Concurrency is the number of owners synced in parallel.
	Concurrency int
}

// DefaultSyncPetLevelsConfig returns sensible defaults.
func DefaultSyncPetLevelsConfig() SyncPetLevelsConfig {
	return SyncPetLevelsConfig{
		BatchSize:   100,
		Concurrency: 4,
	}
}

// SyncStats summarises one run.
type SyncStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Processed int
	LeveledUp int
	Skipped   int
	Failed    int
}

// SyncPetLevelsJob walks every companion and syncs its level, so pets rise
// even when their owners never open the client.
type SyncPetLevelsJob struct {
	pets      companion.Repository
	syncer    LevelSyncer
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    SyncPetLevelsConfig

	lastStats atomic.Pointer[SyncStats]
}

// NewSyncPetLevelsJob creates the job. publisher may be nil.
func NewSyncPetLevelsJob(
	pets companion.Repository,
	syncer LevelSyncer,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config SyncPetLevelsConfig,
) *SyncPetLevelsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	return &SyncPetLevelsJob{
		pets:      pets,
		syncer:    syncer,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

func (j *SyncPetLevelsJob) Name() string { return "sync_pet_levels" }

func (j *SyncPetLevelsJob) Description() string {
	return "Raises every companion to its owner's platform level"
}

// LastStats returns the stats of the last finished run, or nil.
func (j *SyncPetLevelsJob) LastStats() *SyncStats {
	return j.lastStats.Load()
}

// Run executes the job. Per-owner failures are counted, not returned; only a
// failed listing or cancellation fails the run.
func (j *SyncPetLevelsJob) Run(ctx context.Context) error {
	stats := &SyncStats{StartedAt: time.Now()}
	runID := uuid.NewString()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, j.config.Concurrency)
	)

	record := func(res *command.SyncLevelResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Processed++
		switch {
		case errors.Is(err, command.ErrSyncInProgress):
			stats.Skipped++
		case err != nil:
			stats.Failed++
		case res.LevelUps > 0:
			stats.LeveledUp++
		}
	}

	var listErr error
	for offset := 0; ; offset += j.config.BatchSize {
		page, err := j.pets.List(ctx, companion.ListOptions{Offset: offset, Limit: j.config.BatchSize})
		if err != nil {
			listErr = fmt.Errorf("list companions at offset %d: %w", offset, err)
			break
		}

		for _, pet := range page {
			select {
			case <-ctx.Done():
				listErr = ctx.Err()
			case sem <- struct{}{}:
			}
			if listErr != nil {
				break
			}

			wg.Add(1)
			go func(owner string) {
				defer wg.Done()
				defer func() { <-sem }()

				res, err := j.syncer.Handle(ctx, command.SyncLevelCommand{OwnerID: owner, CorrelationID: runID})
				if err != nil && !errors.Is(err, command.ErrSyncInProgress) {
					j.logger.Warn("level sync failed", "owner_id", owner, "error", err)
				}
				record(res, err)
			}(pet.OwnerID)
		}

		if listErr != nil || len(page) < j.config.BatchSize {
			break
		}
	}
	wg.Wait()

	stats.Duration = time.Since(stats.StartedAt)
	j.lastStats.Store(stats)

	j.logger.Info("level sync finished",
		"run_id", runID,
		"processed", stats.Processed,
		"leveled_up", stats.LeveledUp,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration.String(),
	)

	if j.publisher != nil {
		event := shared.NewSyncCompletedEvent(stats.Processed, stats.LeveledUp, stats.Failed, stats.Duration, time.Now())
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("publish sync completed", "error", err)
		}
	}

	return listErr
}

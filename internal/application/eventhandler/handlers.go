// Package eventhandler reacts to companion domain events. Handlers run on the
// event bus, so they may receive events published by another instance; they
// read only the event payload.
package eventhandler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ACTIVITY LOG
// Structured audit line for every event.
// ═══════════════════════════════════════════════════════════════════════════

// ActivityLog writes one log record per event and keeps per-type counts.
type ActivityLog struct {
	logger *slog.Logger

	mu     sync.Mutex
	counts map[shared.EventType]int
}

// NewActivityLog creates an ActivityLog.
func NewActivityLog(logger *slog.Logger) *ActivityLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityLog{
		logger: logger.With("handler", "activity_log"),
		counts: make(map[shared.EventType]int),
	}
}

// Handle implements shared.EventHandler.
func (h *ActivityLog) Handle(event shared.Event) error {
	h.mu.Lock()
	h.counts[event.EventType()]++
	h.mu.Unlock()

	attrs := []any{
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	}
	for k, v := range event.Payload() {
		attrs = append(attrs, k, v)
	}
	h.logger.Info("companion event", attrs...)
	return nil
}

// Counts returns how many events of each type were seen.
func (h *ActivityLog) Counts() map[shared.EventType]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[shared.EventType]int, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// ON COMPANION REMOVED
// Drops cached platform data of an owner who no longer has a companion.
// ═══════════════════════════════════════════════════════════════════════════

// LevelForgetter removes cached learner levels.
type LevelForgetter interface {
	ForgetLevel(ctx context.Context, login string) error
}

// OnCompanionRemoved handles companion.removed events.
type OnCompanionRemoved struct {
	levels  LevelForgetter
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnCompanionRemoved creates the handler.
func NewOnCompanionRemoved(levels LevelForgetter, logger *slog.Logger) *OnCompanionRemoved {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnCompanionRemoved{
		levels:  levels,
		logger:  logger.With("handler", "on_companion_removed"),
		timeout: 2 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnCompanionRemoved) Handle(event shared.Event) error {
	if event.EventType() != shared.EventCompanionRemoved {
		return nil
	}
	owner, _ := event.Payload()["owner_id"].(string)
	if owner == "" {
		h.logger.Warn("removed event without owner", "aggregate_id", event.AggregateID())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.levels.ForgetLevel(ctx, owner)
}

// ═══════════════════════════════════════════════════════════════════════════
// ON SYNC COMPLETED
// Reports the outcome of a worker reconciliation pass.
// ═══════════════════════════════════════════════════════════════════════════

// OnSyncCompleted warns when a pass failed for too many companions.
type OnSyncCompleted struct {
	logger *slog.Logger

	// FailureRatio at or above which the pass is reported as degraded.
	FailureRatio float64
}

// NewOnSyncCompleted creates the handler.
func NewOnSyncCompleted(logger *slog.Logger) *OnSyncCompleted {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSyncCompleted{
		logger:       logger.With("handler", "on_sync_completed"),
		FailureRatio: 0.5,
	}
}

// Handle implements shared.EventHandler.
func (h *OnSyncCompleted) Handle(event shared.Event) error {
	if event.EventType() != shared.EventSyncCompleted {
		return nil
	}
	p := event.Payload()
	processed := payloadInt(p, "processed")
	failed := payloadInt(p, "failed")
	leveled := payloadInt(p, "leveled_up")

	if processed > 0 && float64(failed)/float64(processed) >= h.FailureRatio {
		h.logger.Warn("level sync degraded", "processed", processed, "failed", failed, "leveled_up", leveled)
		return nil
	}
	h.logger.Info("level sync finished", "processed", processed, "failed", failed, "leveled_up", leveled)
	return nil
}

// Register subscribes the handlers to bus.
func Register(bus shared.EventSubscriber, activity *ActivityLog, removed *OnCompanionRemoved, synced *OnSyncCompleted) error {
	if activity != nil {
		if err := bus.SubscribeAll(activity.Handle); err != nil {
			return err
		}
	}
	if removed != nil {
		if err := bus.Subscribe(shared.EventCompanionRemoved, removed.Handle); err != nil {
			return err
		}
	}
	if synced != nil {
		if err := bus.Subscribe(shared.EventSyncCompleted, synced.Handle); err != nil {
			return err
		}
	}
	return nil
}

// payloadInt reads a number from a local (int) or decoded remote (float64) payload.
func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

package engine

import (
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

// Action is a user-triggered interaction.
type Action string

const (
	ActionFeed Action = "feed"
	ActionPlay Action = "play"
)

// InteractionHandler validates interactions and applies their effects.
type InteractionHandler struct {
	cfg Config
}

// NewInteractionHandler creates a handler with the given tuning.
func NewInteractionHandler(cfg Config) InteractionHandler {
	return InteractionHandler{cfg: cfg}
}

// Allowed reports whether the action's precondition holds and no lock is open.
func (h InteractionHandler) Allowed(action Action, vitals companion.Vitals, lock *InteractionLock, now time.Time) bool {
	if lock.Active(now) {
		return false
	}
	switch action {
	case ActionFeed:
		return vitals.Energy < companion.MaxVital
	case ActionPlay:
		return vitals.Energy > companion.MinVital
	default:
		return false
	}
}

// Attempt applies the action and returns the lock it opens. Rejected attempts
// change nothing and return false; the current lock is neither reset nor extended.
func (h InteractionHandler) Attempt(action Action, store *StatStore, lock *InteractionLock, now time.Time) (*InteractionLock, bool) {
	if !h.Allowed(action, store.Vitals(), lock, now) {
		return lock, false
	}

	var kind LockKind
	switch action {
	case ActionFeed:
		store.ApplyDelta(0, h.cfg.FeedEnergy, SourceFeed, now)
		kind = LockFeeding
	case ActionPlay:
		store.ApplyDelta(h.cfg.PlayHappiness, -h.cfg.PlayEnergyCost, SourcePlay, now)
		kind = LockPlaying
	}

	return &InteractionLock{Kind: kind, ExpiresAt: now.Add(h.cfg.LockDuration)}, true
}

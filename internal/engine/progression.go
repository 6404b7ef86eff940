package engine

import (
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// LevelReport is the backend's answer to a level sync.
type LevelReport struct {
	OldLevel  companion.Level
	NewLevel  companion.Level
	LevelUps  int
	Unlocked  []companion.Accessory
	UserLevel companion.Level
}

// SyncResult is what a reconciliation changed locally.
type SyncResult struct {
	OldLevel companion.Level
	NewLevel companion.Level
	LevelUps int
	Unlocked []companion.Accessory
}

// ProgressionSynchronizer reconciles the local level with the progression authority.
type ProgressionSynchronizer struct{}

// Reconcile applies a report to the store. The local level only moves up; a
// report at or below it is a no-op with no notifications. Unlocks are taken
// from the catalog when one is loaded, otherwise from the report itself, and
// are always limited to requirements in (old, new].
func (ProgressionSynchronizer) Reconcile(
	store *StatStore,
	catalog companion.Catalog,
	report LevelReport,
	now time.Time,
) (SyncResult, []shared.Event) {
	target := max(report.NewLevel, report.UserLevel)

	change := store.raiseLevel(target, now)
	result := SyncResult{OldLevel: change.Old, NewLevel: change.New, LevelUps: change.Ups()}
	if !change.Raised() {
		return result, nil
	}

	if len(catalog) > 0 {
		result.Unlocked = catalog.UnlockedBetween(change.Old, change.New)
	} else {
		result.Unlocked = companion.Catalog(report.Unlocked).UnlockedBetween(change.Old, change.New)
	}

	pet := store.Pet()
	events := make([]shared.Event, 0, len(result.Unlocked)+1)
	for _, a := range result.Unlocked {
		events = append(events, shared.NewAccessoryUnlockedEvent(pet.ID, a.ID, a.Name, int(a.LevelRequired), now))
	}
	events = append(events, shared.NewLevelUpEvent(pet.ID, int(change.Old), int(change.New), now))

	return result, events
}

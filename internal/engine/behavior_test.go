package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

func TestDerive_Precedence(t *testing.T) {
	now := testStart
	feeding := &InteractionLock{Kind: LockFeeding, ExpiresAt: now.Add(time.Second)}
	playing := &InteractionLock{Kind: LockPlaying, ExpiresAt: now.Add(time.Second)}
	expired := &InteractionLock{Kind: LockFeeding, ExpiresAt: now}

	tests := []struct {
		name    string
		vitals  companion.Vitals
		lock    *InteractionLock
		present bool
		want    State
	}{
		{"feeding pins eating over dead", companion.Vitals{Happiness: 0, Energy: 0}, feeding, false, StateEating},
		{"playing pins playing", companion.Vitals{Happiness: 100, Energy: 100}, playing, true, StatePlaying},
		{"expired lock is ignored", companion.Vitals{Happiness: 50, Energy: 50}, expired, false, StateIdle},
		{"zero energy is dead", companion.Vitals{Happiness: 100, Energy: 0}, nil, true, StateDead},
		{"low happiness cries", companion.Vitals{Happiness: 10, Energy: 80}, nil, true, StateCrying},
		{"full happiness dances", companion.Vitals{Happiness: 100, Energy: 50}, nil, false, StateDancing},
		{"full energy dances", companion.Vitals{Happiness: 40, Energy: 100}, nil, true, StateDancing},
		{"present owner chills", companion.Vitals{Happiness: 50, Energy: 50}, nil, true, StateChilling},
		{"absent owner idles", companion.Vitals{Happiness: 50, Energy: 50}, nil, false, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(Inputs{
				Vitals:          tt.vitals,
				Lock:            tt.lock,
				Present:         tt.present,
				Now:             now,
				CryingThreshold: 10,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerive_DeadRegardlessOfHappiness(t *testing.T) {
	for h := companion.MinVital; h <= companion.MaxVital; h++ {
		got := Derive(Inputs{Vitals: companion.Vitals{Happiness: h, Energy: 0}, Now: testStart, CryingThreshold: 10})
		assert.Equal(t, StateDead, got, "happiness %d", h)
	}
}

func TestStatStore_ApplyDelta(t *testing.T) {
	store := NewStatStore(companion.Pet{Vitals: companion.Vitals{Happiness: 50, Energy: 50}})

	deltas := [][2]int{{80, -10}, {-300, 7}, {0, 200}, {-1, -1}, {45, -99}}
	for _, d := range deltas {
		v := store.ApplyDelta(d[0], d[1], SourceDecay, testStart)
		assert.True(t, v.Happiness >= 0 && v.Happiness <= 100)
		assert.True(t, v.Energy >= 0 && v.Energy <= 100)
	}
	assert.True(t, store.Pet().LastFed.IsZero())
	assert.True(t, store.Pet().LastPlayed.IsZero())

	store.ApplyDelta(0, 5, SourceFeed, testStart)
	assert.Equal(t, testStart, store.Pet().LastFed)

	later := testStart.Add(time.Minute)
	store.ApplyDelta(5, -5, SourcePlay, later)
	assert.Equal(t, later, store.Pet().LastPlayed)
	assert.Equal(t, testStart, store.Pet().LastFed)
}

func TestInteractionHandler_RejectsWithoutSideEffects(t *testing.T) {
	h := NewInteractionHandler(DefaultConfig())

	full := NewStatStore(companion.Pet{Vitals: companion.Vitals{Happiness: 30, Energy: 100}})
	lock, ok := h.Attempt(ActionFeed, full, nil, testStart)
	assert.False(t, ok)
	assert.Nil(t, lock)
	assert.True(t, full.Pet().LastFed.IsZero())

	empty := NewStatStore(companion.Pet{Vitals: companion.Vitals{Happiness: 30, Energy: 0}})
	_, ok = h.Attempt(ActionPlay, empty, nil, testStart)
	assert.False(t, ok)
	assert.Equal(t, companion.Vitals{Happiness: 30, Energy: 0}, empty.Vitals())

	store := NewStatStore(companion.Pet{Vitals: companion.Vitals{Happiness: 95, Energy: 5}})
	lock, ok = h.Attempt(ActionPlay, store, nil, testStart)
	assert.True(t, ok)
	assert.Equal(t, LockPlaying, lock.Kind)
	assert.Equal(t, testStart.Add(3*time.Second), lock.ExpiresAt)
	assert.Equal(t, companion.Vitals{Happiness: 100, Energy: 0}, store.Vitals())

	again, ok := h.Attempt(ActionFeed, store, lock, testStart.Add(time.Second))
	assert.False(t, ok)
	assert.Same(t, lock, again)
}

func TestProgression_Reconcile(t *testing.T) {
	var ps ProgressionSynchronizer
	store := NewStatStore(companion.Pet{ID: "p", Level: 4})
	catalog := companion.Catalog{}
	for _, e := range testEntries() {
		catalog = append(catalog, e.Accessory)
	}

	result, events := ps.Reconcile(store, catalog, LevelReport{NewLevel: 7, UserLevel: 7}, testStart)
	assert.Equal(t, 3, result.LevelUps)
	assert.Len(t, result.Unlocked, 3)
	assert.Len(t, events, 4)

	result, events = ps.Reconcile(store, catalog, LevelReport{NewLevel: 7, UserLevel: 7}, testStart)
	assert.Equal(t, 0, result.LevelUps)
	assert.Empty(t, result.Unlocked)
	assert.Empty(t, events)

	result, _ = ps.Reconcile(store, catalog, LevelReport{NewLevel: 5, UserLevel: 5}, testStart)
	assert.Equal(t, companion.Level(7), result.NewLevel, "a lower report never lowers the level")

	// Without a loaded catalog the backend's list is used, bounded to the range.
	bare := NewStatStore(companion.Pet{ID: "p", Level: 4})
	report := LevelReport{NewLevel: 6, UserLevel: 6, Unlocked: []companion.Accessory{
		{ID: "cap", LevelRequired: 5}, {ID: "bow", LevelRequired: 2}, {ID: "scarf", LevelRequired: 6},
	}}
	result, _ = ps.Reconcile(bare, nil, report, testStart)
	assert.Len(t, result.Unlocked, 2)
}

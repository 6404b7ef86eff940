package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu       sync.Mutex
	pet      *companion.Pet
	level    companion.Level
	catalog  []CatalogEntry
	equipped []companion.Accessory

	syncErr error
	setErr  error
	onSync  func()

	syncCalls int
	setCalls  int
}

func (b *fakeBackend) GetPet(context.Context) (*companion.Pet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pet == nil {
		return nil, shared.ErrCompanionNotFound
	}
	return b.pet.Clone(), nil
}

func (b *fakeBackend) CreatePet(_ context.Context, name string, species companion.Species) (*companion.Pet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pet != nil {
		return nil, shared.ErrCompanionAlreadyExists
	}
	b.pet = &companion.Pet{ID: "pet-1", OwnerID: "alice", Name: name, Species: species, Level: 1,
		Vitals: companion.Vitals{Happiness: 50, Energy: 50}}
	return b.pet.Clone(), nil
}

func (b *fakeBackend) RenamePet(_ context.Context, name string) (*companion.Pet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pet == nil {
		return nil, shared.ErrCompanionNotFound
	}
	b.pet.Name = name
	return b.pet.Clone(), nil
}

func (b *fakeBackend) DeletePet(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pet == nil {
		return shared.ErrCompanionNotFound
	}
	b.pet = nil
	return nil
}

func (b *fakeBackend) SyncLevel(context.Context) (LevelReport, error) {
	b.mu.Lock()
	b.syncCalls++
	hook, err := b.onSync, b.syncErr
	old := b.pet.Level
	if b.level > b.pet.Level {
		b.pet.Level = b.level
	}
	report := LevelReport{OldLevel: old, NewLevel: b.pet.Level, LevelUps: int(b.pet.Level - old), UserLevel: b.level}
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return LevelReport{}, err
	}
	return report, nil
}

func (b *fakeBackend) ListAccessories(context.Context) (AccessoryListing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return AccessoryListing{Entries: append([]CatalogEntry(nil), b.catalog...), UserLevel: b.level}, nil
}

func (b *fakeBackend) SetAccessory(_ context.Context, id string, equip bool) (EquipResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setCalls++
	if b.setErr != nil {
		return EquipResult{}, b.setErr
	}
	return EquipResult{AccessoryID: id, Equipped: equip}, nil
}

func (b *fakeBackend) ListEquipped(context.Context) (EquippedListing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return EquippedListing{Accessories: append([]companion.Accessory(nil), b.equipped...)}, nil
}

type recorder struct {
	mu     sync.Mutex
	snaps  []Snapshot
	events []shared.Event
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	r.events = append(r.events, s.Events...)
}

func (r *recorder) ofType(t shared.EventType) []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.Event
	for _, e := range r.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps, r.events = nil, nil
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEntries() []CatalogEntry {
	return []CatalogEntry{
		{Accessory: companion.Accessory{ID: "cap", Name: "Cap", Slot: companion.SlotHead, LevelRequired: 5,
			StatsBoost: companion.StatsBoost{companion.VitalHappiness: 5}}},
		{Accessory: companion.Accessory{ID: "scarf", Name: "Scarf", Slot: companion.SlotNeck, LevelRequired: 6,
			StatsBoost: companion.StatsBoost{companion.VitalEnergy: 10}}},
		{Accessory: companion.Accessory{ID: "crown", Name: "Crown", Slot: companion.SlotHead, LevelRequired: 7,
			StatsBoost: companion.StatsBoost{companion.VitalHappiness: 20}}, Unlocked: true},
		{Accessory: companion.Accessory{ID: "cape", Name: "Cape", Slot: companion.SlotBody, LevelRequired: 8}},
	}
}

type harness struct {
	engine  *Engine
	backend *fakeBackend
	clock   *timeutil.Fake
	input   *InputHub
	events  *recorder
}

func newHarness(t *testing.T, level companion.Level, cfg Config) *harness {
	t.Helper()

	backend := &fakeBackend{
		pet: &companion.Pet{ID: "pet-1", OwnerID: "alice", Name: "Mochi", Species: companion.SpeciesCat,
			Level: level, Vitals: companion.Vitals{Happiness: 50, Energy: 50}},
		level:   level,
		catalog: testEntries(),
	}
	clock := timeutil.NewFake(testStart)
	hub := NewInputHub()
	rec := &recorder{}

	e := New(backend, Options{Config: cfg, Clock: clock, Input: hub})
	e.Subscribe(rec.observe)
	t.Cleanup(e.Close)

	require.NoError(t, e.Mount(context.Background()))
	return &harness{engine: e, backend: backend, clock: clock, input: hub, events: rec}
}

// ─────────────────────────────────────────────────────────────────────────────
// Interactions
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_FeedScenario(t *testing.T) {
	t.Run("idle owner", func(t *testing.T) {
		h := newHarness(t, 1, DefaultConfig())

		require.True(t, h.engine.Feed())
		snap := h.engine.Snapshot()
		assert.Equal(t, 70, snap.Pet.Vitals.Energy)
		assert.Equal(t, 50, snap.Pet.Vitals.Happiness)
		assert.Equal(t, testStart, snap.Pet.LastFed)
		assert.Equal(t, StateEating, snap.State)

		h.clock.Advance(3 * time.Second)
		snap = h.engine.Snapshot()
		assert.Nil(t, snap.Lock)
		assert.Equal(t, StateIdle, snap.State)
		assert.Equal(t, 70, snap.Pet.Vitals.Energy)
	})

	t.Run("present owner", func(t *testing.T) {
		h := newHarness(t, 1, DefaultConfig())
		h.input.Emit(InputKey)
		assert.Equal(t, StateChilling, h.engine.Snapshot().State)

		require.True(t, h.engine.Feed())
		assert.Equal(t, StateEating, h.engine.Snapshot().State)

		h.clock.Advance(3 * time.Second)
		assert.Equal(t, StateChilling, h.engine.Snapshot().State)
	})
}

func TestEngine_InteractionPreconditions(t *testing.T) {
	h := newHarness(t, 1, DefaultConfig())

	// energy 50 -> 70 -> 90 -> 100
	for i := 0; i < 3; i++ {
		require.True(t, h.engine.Feed())
		h.clock.Advance(3 * time.Second)
	}
	require.Equal(t, 100, h.engine.Snapshot().Pet.Vitals.Energy)

	before := h.engine.Snapshot()
	assert.False(t, h.engine.Feed(), "feed at full energy is a no-op")
	after := h.engine.Snapshot()
	assert.Nil(t, after.Lock)
	assert.Equal(t, before.Pet, after.Pet)

	// energy 100 -> 0 in ten plays
	for i := 0; i < 10; i++ {
		require.True(t, h.engine.Play())
		h.clock.Advance(3 * time.Second)
	}
	require.Equal(t, 0, h.engine.Snapshot().Pet.Vitals.Energy)
	assert.Equal(t, StateDead, h.engine.Snapshot().State)

	before = h.engine.Snapshot()
	assert.False(t, h.engine.Play(), "play at zero energy is a no-op")
	assert.Equal(t, before.Pet, h.engine.Snapshot().Pet)
	assert.Nil(t, h.engine.Snapshot().Lock)
}

func TestEngine_SecondInteractionDuringLockIsRejected(t *testing.T) {
	h := newHarness(t, 1, DefaultConfig())

	require.True(t, h.engine.Feed())
	locked := h.engine.Snapshot()
	require.NotNil(t, locked.Lock)

	h.clock.Advance(time.Second)
	assert.False(t, h.engine.Play())
	assert.False(t, h.engine.Feed())

	snap := h.engine.Snapshot()
	assert.Equal(t, locked.Pet, snap.Pet)
	assert.Equal(t, locked.Lock.ExpiresAt, snap.Lock.ExpiresAt)
	assert.Equal(t, StateEating, snap.State)

	h.clock.Advance(2 * time.Second)
	assert.Nil(t, h.engine.Snapshot().Lock, "lock expires at its original deadline")
	assert.True(t, h.engine.Play())
}

// ─────────────────────────────────────────────────────────────────────────────
// Decay and teardown
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_DecaySkippedWhileLocked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DecayInterval = 2 * time.Second
	h := newHarness(t, 1, cfg)

	require.True(t, h.engine.Feed())
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, companion.Vitals{Happiness: 50, Energy: 70}, h.engine.Snapshot().Pet.Vitals)

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, companion.Vitals{Happiness: 48, Energy: 69}, h.engine.Snapshot().Pet.Vitals)
}

func TestEngine_DecayLowersVitalsOverTime(t *testing.T) {
	h := newHarness(t, 1, DefaultConfig())

	h.clock.Advance(20 * time.Minute)
	snap := h.engine.Snapshot()
	assert.Equal(t, companion.Vitals{Happiness: 10, Energy: 30}, snap.Pet.Vitals)
	assert.Equal(t, StateCrying, snap.State)
	assert.True(t, snap.Pet.LastFed.IsZero(), "decay never stamps interaction times")
}

func TestEngine_NoTimersAfterClose(t *testing.T) {
	h := newHarness(t, 1, DefaultConfig())
	h.input.Emit(InputPointer)
	require.True(t, h.engine.Feed())
	require.Equal(t, 1, h.input.Listeners())

	syncs := h.backend.syncCalls
	h.engine.Close()
	h.events.reset()

	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 0, h.input.Listeners())

	h.clock.Advance(time.Hour)
	assert.Equal(t, syncs, h.backend.syncCalls)
	assert.Empty(t, h.events.snaps)
	assert.False(t, h.engine.Feed())
}

// ─────────────────────────────────────────────────────────────────────────────
// Progression
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_SyncUnlocksHalfOpenRange(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	h.events.reset()

	h.backend.level = 7
	result, err := h.engine.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, companion.Level(4), result.OldLevel)
	assert.Equal(t, companion.Level(7), result.NewLevel)
	assert.Equal(t, 3, result.LevelUps)

	ids := make([]string, 0, len(result.Unlocked))
	for _, a := range result.Unlocked {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"cap", "scarf", "crown"}, ids)

	assert.Len(t, h.events.ofType(shared.EventAccessoryUnlocked), 3)
	assert.Len(t, h.events.ofType(shared.EventLevelUp), 1)
	assert.Equal(t, companion.Level(7), h.engine.Snapshot().Pet.Level)
}

func TestEngine_SyncIsIdempotent(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	h.backend.level = 7

	_, err := h.engine.Sync(context.Background())
	require.NoError(t, err)
	h.events.reset()

	result, err := h.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.LevelUps)
	assert.Empty(t, result.Unlocked)
	assert.Empty(t, h.events.ofType(shared.EventLevelUp))
	assert.Empty(t, h.events.ofType(shared.EventAccessoryUnlocked))
}

func TestEngine_SyncFailureIsRecoverable(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	h.backend.level = 6
	h.backend.syncErr = shared.ErrBackendUnavailable

	_, err := h.engine.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))

	snap := h.engine.Snapshot()
	assert.Equal(t, companion.Level(4), snap.Pet.Level)
	assert.Error(t, snap.SyncErr)
	assert.False(t, snap.SyncPending)

	h.backend.syncErr = nil
	h.clock.Advance(5 * time.Minute)

	snap = h.engine.Snapshot()
	assert.Equal(t, companion.Level(6), snap.Pet.Level, "next scheduled tick retries")
	assert.NoError(t, snap.SyncErr)
}

func TestEngine_NoCommitAfterTeardown(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())
	h.events.reset()

	h.backend.level = 7
	h.backend.onSync = h.engine.Close

	_, err := h.engine.Sync(context.Background())
	assert.ErrorIs(t, err, shared.ErrDisposed)
	assert.Empty(t, h.events.ofType(shared.EventLevelUp))
	assert.False(t, h.engine.Snapshot().Mounted)
}

// ─────────────────────────────────────────────────────────────────────────────
// Accessories
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_EquipIgnoresStaleUnlockedFlag(t *testing.T) {
	h := newHarness(t, 4, DefaultConfig())

	crown := h.engine.Snapshot().Catalog[2]
	require.True(t, crown.Unlocked, "listing flag claims the crown is unlocked")
	require.False(t, crown.Eligible)

	err := h.engine.Equip(context.Background(), "crown")
	assert.ErrorIs(t, err, shared.ErrLevelRequirement)
	assert.Equal(t, 0, h.backend.setCalls)
	assert.Empty(t, h.engine.Snapshot().Equipped)
}

func TestEngine_EquipAppliesBoostOverlay(t *testing.T) {
	h := newHarness(t, 7, DefaultConfig())

	require.NoError(t, h.engine.Equip(context.Background(), "crown"))
	require.NoError(t, h.engine.Equip(context.Background(), "scarf"))

	snap := h.engine.Snapshot()
	assert.Equal(t, companion.Vitals{Happiness: 70, Energy: 60}, snap.Boosted)
	assert.Equal(t, companion.Vitals{Happiness: 50, Energy: 50}, snap.Pet.Vitals, "base vitals are untouched")
	assert.Len(t, snap.Equipped, 2)

	err := h.engine.Equip(context.Background(), "cap")
	assert.ErrorIs(t, err, shared.ErrSlotOccupied)

	require.NoError(t, h.engine.Unequip(context.Background(), "crown"))
	require.NoError(t, h.engine.Equip(context.Background(), "cap"))
	assert.Equal(t, companion.Vitals{Happiness: 55, Energy: 60}, h.engine.Snapshot().Boosted)
}

func TestEngine_EquipRollsBackOnFailure(t *testing.T) {
	h := newHarness(t, 7, DefaultConfig())
	h.backend.setErr = shared.ErrBackendUnavailable

	err := h.engine.Equip(context.Background(), "crown")
	require.Error(t, err)

	snap := h.engine.Snapshot()
	assert.Empty(t, snap.Equipped)
	assert.Empty(t, snap.PendingAccessories)
	assert.Equal(t, snap.Pet.Vitals, snap.Boosted)
	assert.Error(t, snap.LastErr)

	h.backend.setErr = nil
	require.NoError(t, h.engine.Equip(context.Background(), "crown"))
	h.backend.setErr = errors.New("boom")

	require.Error(t, h.engine.Unequip(context.Background(), "crown"))
	require.Len(t, h.engine.Snapshot().Equipped, 1, "failed unequip restores the accessory")
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_AbsenceThenAdopt(t *testing.T) {
	backend := &fakeBackend{catalog: testEntries()}
	rec := &recorder{}
	e := New(backend, Options{Clock: timeutil.NewFake(testStart)})
	e.Subscribe(rec.observe)
	defer e.Close()

	err := e.Mount(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.False(t, e.Snapshot().Mounted)
	assert.NoError(t, e.Snapshot().LastErr, "absence is not an error state")

	assert.ErrorIs(t, e.Adopt(context.Background(), "   ", companion.SpeciesFox), shared.ErrInvalidName)

	require.NoError(t, e.Adopt(context.Background(), "Ember", companion.SpeciesFox))
	snap := e.Snapshot()
	assert.True(t, snap.Mounted)
	assert.Equal(t, "Ember", snap.Pet.Name)
	assert.Len(t, rec.ofType(shared.EventCompanionCreated), 1)

	assert.ErrorIs(t, e.Adopt(context.Background(), "Other", companion.SpeciesDog), shared.ErrCompanionAlreadyExists)
}

func TestEngine_RenameAndRemove(t *testing.T) {
	h := newHarness(t, 1, DefaultConfig())

	require.NoError(t, h.engine.Rename(context.Background(), "  Biscuit "))
	assert.Equal(t, "Biscuit", h.engine.Snapshot().Pet.Name)

	require.NoError(t, h.engine.Remove(context.Background()))
	snap := h.engine.Snapshot()
	assert.False(t, snap.Mounted)
	assert.Len(t, h.events.ofType(shared.EventCompanionRemoved), 1)
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 0, h.input.Listeners())

	err := h.engine.Mount(context.Background())
	assert.True(t, shared.IsNotFound(err))
}

package companion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

func TestVitalsApply_AlwaysInRange(t *testing.T) {
	deltas := [][2]int{{50, 50}, {-500, 0}, {0, -1}, {300, 300}, {-1, 1}, {-99, -99}, {17, -3}}

	v := Vitals{Happiness: 50, Energy: 50}
	for _, d := range deltas {
		v = v.Apply(d[0], d[1])
		assert.GreaterOrEqual(t, v.Happiness, MinVital)
		assert.LessOrEqual(t, v.Happiness, MaxVital)
		assert.GreaterOrEqual(t, v.Energy, MinVital)
		assert.LessOrEqual(t, v.Energy, MaxVital)
	}
}

func TestNewPet_Validation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	pet, err := NewPet(NewPetParams{
		ID: "p1", OwnerID: "alice", Name: "  Mochi ", Species: SpeciesCat,
		Vitals: Vitals{Happiness: 150, Energy: -4}, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mochi", pet.Name)
	assert.Equal(t, MinLevel, pet.Level)
	assert.Equal(t, Vitals{Happiness: 100, Energy: 0}, pet.Vitals)

	_, err = NewPet(NewPetParams{ID: "p1", OwnerID: "alice", Name: "   ", Species: SpeciesCat})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewPet(NewPetParams{ID: "p1", OwnerID: "alice", Name: "Rex", Species: "unicorn"})
	assert.ErrorIs(t, err, shared.ErrInvalidSpecies)
}

func TestRaiseTo_IsMonotonicAndIdempotent(t *testing.T) {
	pet := &Pet{Level: 4}
	now := time.Now()

	change := pet.RaiseTo(7, now)
	assert.Equal(t, 3, change.Ups())
	assert.Equal(t, Level(7), pet.Level)

	change = pet.RaiseTo(7, now)
	assert.False(t, change.Raised())
	assert.Equal(t, 0, change.Ups())

	change = pet.RaiseTo(5, now)
	assert.False(t, change.Raised())
	assert.Equal(t, Level(7), pet.Level)
}

func TestLevelFromXP(t *testing.T) {
	assert.Equal(t, Level(1), LevelFromXP(0))
	assert.Equal(t, Level(1), LevelFromXP(999))
	assert.Equal(t, Level(2), LevelFromXP(1000))
	assert.Equal(t, Level(1), LevelFromXP(-20))
}

func testCatalog() Catalog {
	return Catalog{
		{ID: "cap", Slot: SlotHead, LevelRequired: 5, StatsBoost: StatsBoost{VitalHappiness: 5}},
		{ID: "scarf", Slot: SlotNeck, LevelRequired: 6, StatsBoost: StatsBoost{VitalEnergy: 10}},
		{ID: "crown", Slot: SlotHead, LevelRequired: 7, StatsBoost: StatsBoost{VitalHappiness: 20}},
		{ID: "cape", Slot: SlotBody, LevelRequired: 8},
		{ID: "bow", Slot: SlotNeck, LevelRequired: 2},
	}
}

func TestUnlockedBetween_HalfOpenRange(t *testing.T) {
	unlocked := testCatalog().UnlockedBetween(4, 7)

	ids := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"cap", "scarf", "crown"}, ids)

	assert.Empty(t, testCatalog().UnlockedBetween(7, 7))
	assert.Empty(t, testCatalog().UnlockedBetween(7, 3))
}

func TestLoadout_CheckEquip(t *testing.T) {
	catalog := testCatalog()
	hat, _ := catalog.Find("cap")
	crown, _ := catalog.Find("crown")

	var l Loadout
	assert.ErrorIs(t, l.CheckEquip(hat, 4), shared.ErrLevelRequirement)
	require.NoError(t, l.CheckEquip(hat, 5))

	l = l.Equip(hat)
	assert.NoError(t, l.CheckEquip(hat, 9), "re-equipping the same accessory is allowed")
	assert.ErrorIs(t, l.CheckEquip(crown, 9), shared.ErrSlotOccupied)

	l, removed, err := l.Unequip("cap")
	require.NoError(t, err)
	assert.Equal(t, "cap", removed.ID)
	assert.NoError(t, l.CheckEquip(crown, 9))

	_, _, err = l.Unequip("cap")
	assert.ErrorIs(t, err, shared.ErrNotEquipped)
}

func TestBoosted_DoesNotTouchBase(t *testing.T) {
	catalog := testCatalog()
	crown, _ := catalog.Find("crown")
	scarf, _ := catalog.Find("scarf")

	base := Vitals{Happiness: 90, Energy: 40}
	l := Loadout{}.Equip(crown).Equip(scarf)

	assert.Equal(t, Vitals{Happiness: 100, Energy: 50}, Boosted(base, l))
	assert.Equal(t, Vitals{Happiness: 90, Energy: 40}, base)
	assert.Equal(t, []Slot{SlotHead, SlotNeck}, []Slot{l.List()[0].Slot, l.List()[1].Slot})
}

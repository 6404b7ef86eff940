package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

func newPet(t *testing.T, id, owner string) *companion.Pet {
	t.Helper()
	pet, err := companion.NewPet(companion.NewPetParams{
		ID: id, OwnerID: owner, Name: "Byte", Species: companion.SpeciesCat,
		Vitals: companion.Vitals{Happiness: 50, Energy: 50}, Now: time.Unix(0, 0),
	})
	require.NoError(t, err)
	return pet
}

func TestPetStore_OnePerOwner(t *testing.T) {
	ctx := context.Background()
	store := NewPetStore()

	require.NoError(t, store.Create(ctx, newPet(t, "p1", "alice")))
	err := store.Create(ctx, newPet(t, "p2", "alice"))
	assert.ErrorIs(t, err, shared.ErrCompanionAlreadyExists)

	require.NoError(t, store.Delete(ctx, "alice"))
	_, err = store.GetByOwner(ctx, "alice")
	assert.True(t, shared.IsNotFound(err))
	assert.ErrorIs(t, store.Delete(ctx, "alice"), shared.ErrCompanionNotFound)
}

func TestPetStore_UpdateNeverLowersLevel(t *testing.T) {
	ctx := context.Background()
	store := NewPetStore()
	pet := newPet(t, "p1", "alice")
	require.NoError(t, store.Create(ctx, pet))

	pet.RaiseTo(5, time.Unix(10, 0))
	require.NoError(t, store.Update(ctx, pet))

	stale := pet.Clone()
	stale.Level = 2
	stale.Name = "Renamed"
	require.NoError(t, store.Update(ctx, stale))

	got, err := store.GetByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, companion.Level(5), got.Level)
	assert.Equal(t, "Renamed", got.Name)
}

func TestPetStore_RaiseLevelTouchesOnlyLevel(t *testing.T) {
	ctx := context.Background()
	store := NewPetStore()
	pet := newPet(t, "p1", "alice")
	require.NoError(t, store.Create(ctx, pet))

	renamed := pet.Clone()
	renamed.Name = "Renamed"
	require.NoError(t, store.Update(ctx, renamed))

	at := time.Unix(20, 0)
	require.NoError(t, store.RaiseLevel(ctx, "p1", 4, at))
	require.NoError(t, store.RaiseLevel(ctx, "p1", 2, at))

	got, err := store.GetByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, companion.Level(4), got.Level)
	assert.Equal(t, "Renamed", got.Name)
	assert.True(t, got.UpdatedAt.Equal(at))

	assert.ErrorIs(t, store.RaiseLevel(ctx, "missing", 3, at), shared.ErrCompanionNotFound)
}

func TestPetStore_ListPages(t *testing.T) {
	ctx := context.Background()
	store := NewPetStore()
	for _, owner := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, newPet(t, "id-"+owner, owner)))
	}

	page, err := store.List(ctx, companion.ListOptions{Offset: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].OwnerID)

	page, err = store.List(ctx, companion.ListOptions{Offset: 3, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestAccessoryStore_SlotRules(t *testing.T) {
	ctx := context.Background()
	store := NewAccessoryStore(SeedCatalog())

	hat, err := store.Get(ctx, "party_hat")
	require.NoError(t, err)
	crown, err := store.Get(ctx, "crown")
	require.NoError(t, err)

	require.NoError(t, store.Equip(ctx, "p1", hat))
	require.NoError(t, store.Equip(ctx, "p1", hat))
	assert.ErrorIs(t, store.Equip(ctx, "p1", crown), shared.ErrSlotOccupied)

	require.NoError(t, store.Unequip(ctx, "p1", "party_hat"))
	assert.ErrorIs(t, store.Unequip(ctx, "p1", "party_hat"), shared.ErrNotEquipped)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrAccessoryNotFound)
}

func TestSeedCatalog_IsOrderedByRequirement(t *testing.T) {
	catalog, err := NewAccessoryStore(SeedCatalog()).Catalog(context.Background())
	require.NoError(t, err)
	for i := 1; i < len(catalog); i++ {
		assert.LessOrEqual(t, catalog[i-1].LevelRequired, catalog[i].LevelRequired)
	}
}

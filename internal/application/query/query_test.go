package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/internal/infrastructure/persistence/memory"
)

type countingCache struct {
	pets       map[string]*companion.Pet
	catalog    companion.Catalog
	petHits    int
	catalogSet int
}

func newCountingCache() *countingCache {
	return &countingCache{pets: map[string]*companion.Pet{}}
}

func (c *countingCache) GetPet(_ context.Context, ownerID string) (*companion.Pet, error) {
	pet, ok := c.pets[ownerID]
	if !ok {
		return nil, errors.New("miss")
	}
	c.petHits++
	return pet.Clone(), nil
}

func (c *countingCache) SetPet(_ context.Context, pet *companion.Pet, _ time.Duration) error {
	c.pets[pet.OwnerID] = pet.Clone()
	return nil
}

func (c *countingCache) InvalidatePet(_ context.Context, ownerID string) error {
	delete(c.pets, ownerID)
	return nil
}

func (c *countingCache) GetCatalog(context.Context) (companion.Catalog, error) {
	if c.catalog == nil {
		return nil, errors.New("miss")
	}
	return c.catalog, nil
}

func (c *countingCache) SetCatalog(_ context.Context, catalog companion.Catalog, _ time.Duration) error {
	c.catalogSet++
	c.catalog = catalog
	return nil
}

func seed(t *testing.T, level companion.Level) (Deps, *memory.AccessoryStore, *companion.Pet) {
	t.Helper()
	pets := memory.NewPetStore()
	accessories := memory.NewAccessoryStore(memory.SeedCatalog())

	pet, err := companion.NewPet(companion.NewPetParams{
		ID: "p1", OwnerID: "alice", Name: "Byte", Species: companion.SpeciesOwl,
		Level: level, Vitals: companion.Vitals{Happiness: 90, Energy: 40},
	})
	require.NoError(t, err)
	require.NoError(t, pets.Create(context.Background(), pet))

	return Deps{Pets: pets, Accessories: accessories}, accessories, pet
}

func TestGetPet_ReadsThroughCache(t *testing.T) {
	deps, _, _ := seed(t, 1)
	cache := newCountingCache()
	deps.Cache = cache
	h := NewGetPetHandler(deps)

	for range 2 {
		pet, err := h.Handle(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "Byte", pet.Name)
	}
	assert.Equal(t, 1, cache.petHits)

	_, err := h.Handle(context.Background(), "bob")
	assert.True(t, shared.IsNotFound(err))
}

func TestListAccessories_FlagsUnlocked(t *testing.T) {
	deps, _, _ := seed(t, 5)
	cache := newCountingCache()
	deps.Cache = cache
	h := NewListAccessoriesHandler(deps)

	list, err := h.Handle(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, companion.Level(5), list.UserLevel)
	require.NotEmpty(t, list.Items)

	for _, item := range list.Items {
		assert.Equal(t, item.LevelRequired <= 5, item.Unlocked, item.ID)
	}

	_, err = h.Handle(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.catalogSet)
}

func TestListEquipped_BoostsAndClamps(t *testing.T) {
	deps, accessories, pet := seed(t, 12)
	ctx := context.Background()

	for _, id := range []string{"crown", "coffee_mug"} {
		a, err := accessories.Get(ctx, id)
		require.NoError(t, err)
		require.NoError(t, accessories.Equip(ctx, pet.ID, a))
	}

	list, err := NewListEquippedHandler(deps).Handle(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list.Accessories, 2)
	assert.Equal(t, "crown", list.Accessories[0].ID)
	assert.Equal(t, companion.Vitals{Happiness: 100, Energy: 55}, list.Stats)
}

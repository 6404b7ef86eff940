// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// Default cache lifetimes when the caller does not configure them.
const (
	DefaultPetTTL     = 10 * time.Minute
	DefaultCatalogTTL = time.Hour
)

// Deps holds the collaborators shared by every query handler.
type Deps struct {
	Pets        companion.Repository
	Accessories companion.AccessoryRepository

	// Cache is optional.
	Cache      companion.Cache
	PetTTL     time.Duration
	CatalogTTL time.Duration

	Logger *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.PetTTL <= 0 {
		d.PetTTL = DefaultPetTTL
	}
	if d.CatalogTTL <= 0 {
		d.CatalogTTL = DefaultCatalogTTL
	}
	return d
}

// pet reads the owner's companion through the cache.
func (d Deps) pet(ctx context.Context, ownerID string) (*companion.Pet, error) {
	if d.Cache != nil {
		if pet, err := d.Cache.GetPet(ctx, ownerID); err == nil && pet != nil {
			return pet, nil
		}
	}

	pet, err := d.Pets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if d.Cache != nil {
		if err := d.Cache.SetPet(ctx, pet, d.PetTTL); err != nil {
			d.Logger.Debug("pet cache write failed", logger.OwnerID(ownerID), logger.Err(err))
		}
	}
	return pet, nil
}

// catalog reads the accessory catalog through the cache.
func (d Deps) catalog(ctx context.Context) (companion.Catalog, error) {
	if d.Cache != nil {
		if catalog, err := d.Cache.GetCatalog(ctx); err == nil && len(catalog) > 0 {
			return catalog, nil
		}
	}

	catalog, err := d.Accessories.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	if d.Cache != nil {
		if err := d.Cache.SetCatalog(ctx, catalog, d.CatalogTTL); err != nil {
			d.Logger.Debug("catalog cache write failed", logger.Err(err))
		}
	}
	return catalog, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET PET QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetPetHandler returns the owner's companion.
type GetPetHandler struct {
	deps Deps
}

// NewGetPetHandler creates a new GetPetHandler.
func NewGetPetHandler(deps Deps) *GetPetHandler {
	return &GetPetHandler{deps: deps.withDefaults()}
}

// Handle returns shared.ErrCompanionNotFound when the owner has no companion.
func (h *GetPetHandler) Handle(ctx context.Context, ownerID string) (*companion.Pet, error) {
	pet, err := h.deps.pet(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get_pet: %w", err)
	}
	return pet, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACCESSORIES QUERY
// The whole catalog, each entry flagged with whether the companion's stored
// level satisfies it.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogItem is one accessory together with its unlocked flag.
type CatalogItem struct {
	companion.Accessory
	Unlocked bool
}

// AccessoryList is the result of ListAccessoriesHandler.
type AccessoryList struct {
	Items     []CatalogItem
	UserLevel companion.Level
}

// ListAccessoriesHandler lists the catalog.
type ListAccessoriesHandler struct {
	deps Deps
}

// NewListAccessoriesHandler creates a new ListAccessoriesHandler.
func NewListAccessoriesHandler(deps Deps) *ListAccessoriesHandler {
	return &ListAccessoriesHandler{deps: deps.withDefaults()}
}

func (h *ListAccessoriesHandler) Handle(ctx context.Context, ownerID string) (*AccessoryList, error) {
	pet, err := h.deps.pet(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list_accessories: %w", err)
	}
	catalog, err := h.deps.catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_accessories: %w", err)
	}

	items := make([]CatalogItem, 0, len(catalog))
	for _, a := range catalog {
		items = append(items, CatalogItem{Accessory: a, Unlocked: a.UnlockedAt(pet.Level)})
	}
	return &AccessoryList{Items: items, UserLevel: pet.Level}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST EQUIPPED QUERY
// ══════════════════════════════════════════════════════════════════════════════

// EquippedList is what the companion wears and its boosted stats.
type EquippedList struct {
	Accessories []companion.Accessory
	Stats       companion.Vitals
}

// ListEquippedHandler lists equipped accessories.
type ListEquippedHandler struct {
	deps Deps
}

// NewListEquippedHandler creates a new ListEquippedHandler.
func NewListEquippedHandler(deps Deps) *ListEquippedHandler {
	return &ListEquippedHandler{deps: deps.withDefaults()}
}

func (h *ListEquippedHandler) Handle(ctx context.Context, ownerID string) (*EquippedList, error) {
	pet, err := h.deps.pet(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list_equipped: %w", err)
	}
	loadout, err := h.deps.Accessories.Loadout(ctx, pet.ID)
	if err != nil {
		return nil, fmt.Errorf("list_equipped: %w", err)
	}
	return &EquippedList{
		Accessories: loadout.List(),
		Stats:       companion.Boosted(pet.Vitals, loadout),
	}, nil
}

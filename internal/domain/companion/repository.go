package companion

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage of companions.
type Repository interface {
	// Create stores a new companion.
	// Returns shared.ErrCompanionAlreadyExists if the owner already has one.
	Create(ctx context.Context, pet *Pet) error

	// GetByOwner returns the owner's companion.
	// Returns shared.ErrCompanionNotFound if the owner has none.
	GetByOwner(ctx context.Context, ownerID string) (*Pet, error)

	// Update persists name, level and vitals.
	// Returns shared.ErrCompanionNotFound if the companion does not exist.
	Update(ctx context.Context, pet *Pet) error

	// RaiseLevel writes only the level, and only upward. Other fields are
	// left as stored.
	// Returns shared.ErrCompanionNotFound if the companion does not exist.
	RaiseLevel(ctx context.Context, petID string, level Level, at time.Time) error

	// Delete removes the companion and everything attached to it.
	// Returns shared.ErrCompanionNotFound if the owner has none.
	Delete(ctx context.Context, ownerID string) error

	// List pages through all companions in creation order.
	List(ctx context.Context, opts ListOptions) ([]*Pet, error)
}

// AccessoryRepository defines storage of the catalog and equipped accessories.
type AccessoryRepository interface {
	// Catalog returns every accessory.
	Catalog(ctx context.Context) (Catalog, error)

	// Get returns one catalog entry.
	// Returns shared.ErrAccessoryNotFound for unknown IDs.
	Get(ctx context.Context, accessoryID string) (Accessory, error)

	// Loadout returns the accessories a companion is wearing.
	Loadout(ctx context.Context, petID string) (Loadout, error)

	// Equip stores the accessory in its slot.
	// Returns shared.ErrSlotOccupied if another accessory holds the slot.
	Equip(ctx context.Context, petID string, accessory Accessory) error

	// Unequip removes the accessory.
	// Returns shared.ErrNotEquipped if it is not worn.
	Unequip(ctx context.Context, petID, accessoryID string) error
}

// Cache defines a read-through cache in front of the repositories.
type Cache interface {
	GetPet(ctx context.Context, ownerID string) (*Pet, error)
	SetPet(ctx context.Context, pet *Pet, ttl time.Duration) error
	InvalidatePet(ctx context.Context, ownerID string) error

	GetCatalog(ctx context.Context) (Catalog, error)
	SetCatalog(ctx context.Context, catalog Catalog, ttl time.Duration) error
}

// ListOptions contains pagination parameters.
type ListOptions struct {
	Offset int
	Limit  int
}

// DefaultListOptions returns the default page.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  100,
	}
}

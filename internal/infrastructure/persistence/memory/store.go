// Package memory keeps companions in process memory. It backs the API in
// development mode and the application tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// SeedCatalog is the catalog the database migrations install.
func SeedCatalog() companion.Catalog {
	return companion.Catalog{
		{ID: "party_hat", Name: "Party Hat", Description: "For the first pushed project.", Slot: companion.SlotHead, LevelRequired: 2, StatsBoost: companion.StatsBoost{companion.VitalHappiness: 5}},
		{ID: "bandana", Name: "Bandana", Description: "Keeps the focus on the task.", Slot: companion.SlotNeck, LevelRequired: 3, StatsBoost: companion.StatsBoost{companion.VitalEnergy: 5}},
		{ID: "backpack", Name: "Backpack", Description: "Holds snacks for long piscines.", Slot: companion.SlotBody, LevelRequired: 4, StatsBoost: companion.StatsBoost{companion.VitalEnergy: 10}},
		{ID: "scarf", Name: "Cozy Scarf", Description: "Warm on late evenings at campus.", Slot: companion.SlotNeck, LevelRequired: 5, StatsBoost: companion.StatsBoost{companion.VitalHappiness: 5, companion.VitalEnergy: 5}},
		{ID: "wizard_hat", Name: "Wizard Hat", Description: "Recursion is no longer scary.", Slot: companion.SlotHead, LevelRequired: 6, StatsBoost: companion.StatsBoost{companion.VitalHappiness: 10}},
		{ID: "coffee_mug", Name: "Coffee Mug", Description: "Fuel for the next checkpoint.", Slot: companion.SlotHeld, LevelRequired: 7, StatsBoost: companion.StatsBoost{companion.VitalEnergy: 15}},
		{ID: "cape", Name: "Hero Cape", Description: "Worn by those who help their peers.", Slot: companion.SlotBody, LevelRequired: 8, StatsBoost: companion.StatsBoost{companion.VitalHappiness: 10, companion.VitalEnergy: 5}},
		{ID: "crown", Name: "Crown", Description: "Reached double digits.", Slot: companion.SlotHead, LevelRequired: 10, StatsBoost: companion.StatsBoost{companion.VitalHappiness: 20}},
		{ID: "golden_keyboard", Name: "Golden Keyboard", Description: "Every keystroke counts.", Slot: companion.SlotHeld, LevelRequired: 12, StatsBoost: companion.StatsBoost{companion.VitalHappiness: 15, companion.VitalEnergy: 10}},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PET STORE
// ══════════════════════════════════════════════════════════════════════════════

// PetStore implements companion.Repository.
type PetStore struct {
	mu      sync.RWMutex
	byOwner map[string]*companion.Pet
	order   []string
}

// NewPetStore creates an empty store.
func NewPetStore() *PetStore {
	return &PetStore{byOwner: make(map[string]*companion.Pet)}
}

var _ companion.Repository = (*PetStore)(nil)

func (s *PetStore) Create(_ context.Context, pet *companion.Pet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOwner[pet.OwnerID]; ok {
		return shared.ErrCompanionAlreadyExists
	}
	s.byOwner[pet.OwnerID] = pet.Clone()
	s.order = append(s.order, pet.OwnerID)
	return nil
}

func (s *PetStore) GetByOwner(_ context.Context, ownerID string) (*companion.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pet, ok := s.byOwner[ownerID]
	if !ok {
		return nil, shared.ErrCompanionNotFound
	}
	return pet.Clone(), nil
}

// Update keeps the stored level when the incoming one is lower.
func (s *PetStore) Update(_ context.Context, pet *companion.Pet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byOwner[pet.OwnerID]
	if !ok || stored.ID != pet.ID {
		return shared.ErrCompanionNotFound
	}
	next := pet.Clone()
	next.Level = max(stored.Level, pet.Level)
	next.CreatedAt = stored.CreatedAt
	s.byOwner[pet.OwnerID] = next
	return nil
}

// RaiseLevel never lowers the stored level and touches nothing else.
func (s *PetStore) RaiseLevel(_ context.Context, petID string, level companion.Level, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for owner, stored := range s.byOwner {
		if stored.ID != petID {
			continue
		}
		next := stored.Clone()
		if level > next.Level {
			next.Level = level
		}
		next.UpdatedAt = at
		s.byOwner[owner] = next
		return nil
	}
	return shared.ErrCompanionNotFound
}

func (s *PetStore) Delete(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOwner[ownerID]; !ok {
		return shared.ErrCompanionNotFound
	}
	delete(s.byOwner, ownerID)
	for i, id := range s.order {
		if id == ownerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *PetStore) List(_ context.Context, opts companion.ListOptions) ([]*companion.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if opts.Limit <= 0 {
		opts = companion.DefaultListOptions()
	}
	if opts.Offset >= len(s.order) {
		return nil, nil
	}
	end := min(opts.Offset+opts.Limit, len(s.order))

	pets := make([]*companion.Pet, 0, end-opts.Offset)
	for _, owner := range s.order[opts.Offset:end] {
		pets = append(pets, s.byOwner[owner].Clone())
	}
	return pets, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORY STORE
// ══════════════════════════════════════════════════════════════════════════════

// AccessoryStore implements companion.AccessoryRepository.
type AccessoryStore struct {
	mu       sync.RWMutex
	catalog  companion.Catalog
	loadouts map[string]companion.Loadout
}

// NewAccessoryStore creates a store over catalog.
func NewAccessoryStore(catalog companion.Catalog) *AccessoryStore {
	sorted := append(companion.Catalog(nil), catalog...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LevelRequired != sorted[j].LevelRequired {
			return sorted[i].LevelRequired < sorted[j].LevelRequired
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &AccessoryStore{
		catalog:  sorted,
		loadouts: make(map[string]companion.Loadout),
	}
}

var _ companion.AccessoryRepository = (*AccessoryStore)(nil)

func (s *AccessoryStore) Catalog(_ context.Context) (companion.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(companion.Catalog(nil), s.catalog...), nil
}

func (s *AccessoryStore) Get(_ context.Context, accessoryID string) (companion.Accessory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.catalog.Find(accessoryID)
	if !ok {
		return companion.Accessory{}, shared.ErrAccessoryNotFound
	}
	return a, nil
}

func (s *AccessoryStore) Loadout(_ context.Context, petID string) (companion.Loadout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadouts[petID].Clone(), nil
}

func (s *AccessoryStore) Equip(_ context.Context, petID string, a companion.Accessory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loadout := s.loadouts[petID]
	if current, ok := loadout[a.Slot]; ok {
		if current.ID == a.ID {
			return nil
		}
		return shared.ErrSlotOccupied
	}
	s.loadouts[petID] = loadout.Equip(a)
	return nil
}

func (s *AccessoryStore) Unequip(_ context.Context, petID, accessoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, _, err := s.loadouts[petID].Unequip(accessoryID)
	if err != nil {
		return err
	}
	s.loadouts[petID] = next
	return nil
}

// Forget drops the loadout of a removed companion.
func (s *AccessoryStore) Forget(petID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loadouts, petID)
}

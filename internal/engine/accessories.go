package engine

import (
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// CatalogEntry is an accessory as listed by the backend.
type CatalogEntry struct {
	companion.Accessory

	// Unlocked is the backend's flag at listing time. It may be stale and is
	// never used to authorize an equip.
	Unlocked bool

	// Eligible is computed from the synchronized level when a snapshot is taken.
	Eligible bool
}

// AccessoryListing is the catalog answer.
type AccessoryListing struct {
	Entries   []CatalogEntry
	UserLevel companion.Level
}

// EquippedListing is the equipped-set answer.
type EquippedListing struct {
	Accessories []companion.Accessory
	Stats       companion.Vitals
}

// EquipResult is the answer to an equip or unequip.
type EquipResult struct {
	AccessoryID string
	Equipped    bool
	Stats       companion.Vitals
}

// AccessoryManager holds the catalog and the equipped set. Not safe for
// concurrent use; the Engine serializes access.
type AccessoryManager struct {
	entries []CatalogEntry
	loadout companion.Loadout
	pending map[companion.Slot]string
}

// NewAccessoryManager creates an empty manager.
func NewAccessoryManager() *AccessoryManager {
	return &AccessoryManager{
		loadout: companion.Loadout{},
		pending: make(map[companion.Slot]string),
	}
}

// SetCatalog replaces the catalog.
func (m *AccessoryManager) SetCatalog(entries []CatalogEntry) {
	m.entries = append([]CatalogEntry(nil), entries...)
}

// SetEquipped replaces the equipped set with the backend's view. Slots with a
// change in flight keep their local value.
func (m *AccessoryManager) SetEquipped(items []companion.Accessory) {
	next := companion.Loadout{}
	for _, a := range items {
		if _, busy := m.pending[a.Slot]; busy {
			continue
		}
		next[a.Slot] = a
	}
	for slot := range m.pending {
		if a, ok := m.loadout[slot]; ok {
			next[slot] = a
		}
	}
	m.loadout = next
}

// Catalog returns the accessories without listing flags.
func (m *AccessoryManager) Catalog() companion.Catalog {
	catalog := make(companion.Catalog, 0, len(m.entries))
	for _, e := range m.entries {
		catalog = append(catalog, e.Accessory)
	}
	return catalog
}

// Find looks an accessory up in the catalog, then in the equipped set.
func (m *AccessoryManager) Find(id string) (companion.Accessory, bool) {
	for _, e := range m.entries {
		if e.ID == id {
			return e.Accessory, true
		}
	}
	for _, a := range m.loadout {
		if a.ID == id {
			return a, true
		}
	}
	return companion.Accessory{}, false
}

// Loadout returns the equipped set.
func (m *AccessoryManager) Loadout() companion.Loadout {
	return m.loadout
}

// Entries returns the catalog with eligibility computed against level.
func (m *AccessoryManager) Entries(level companion.Level) []CatalogEntry {
	out := make([]CatalogEntry, len(m.entries))
	for i, e := range m.entries {
		e.Eligible = e.UnlockedAt(level)
		out[i] = e
	}
	return out
}

// Pending returns the accessory IDs with a change in flight.
func (m *AccessoryManager) Pending() []string {
	ids := make([]string, 0, len(m.pending))
	for _, slot := range companion.AllSlots {
		if id, ok := m.pending[slot]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// BeginEquip checks the request against the current level and applies it
// optimistically. The stale Unlocked flag is ignored. Returns false when the
// accessory is already equipped and nothing needs to be sent.
func (m *AccessoryManager) BeginEquip(a companion.Accessory, level companion.Level) (bool, error) {
	if _, busy := m.pending[a.Slot]; busy {
		return false, shared.NewDomainError("accessory", "Equip", shared.ErrConflict, "slot has a change in progress")
	}
	if err := m.loadout.CheckEquip(a, level); err != nil {
		return false, err
	}
	if m.loadout.Has(a.ID) {
		return false, nil
	}
	m.loadout = m.loadout.Equip(a)
	m.pending[a.Slot] = a.ID
	return true, nil
}

// BeginUnequip removes the accessory optimistically.
func (m *AccessoryManager) BeginUnequip(id string) (companion.Accessory, error) {
	for slot, pendingID := range m.pending {
		if pendingID == id {
			return companion.Accessory{}, shared.NewDomainError("accessory", "Unequip", shared.ErrConflict, "change already in progress for "+string(slot))
		}
	}
	next, removed, err := m.loadout.Unequip(id)
	if err != nil {
		return companion.Accessory{}, err
	}
	m.loadout = next
	m.pending[removed.Slot] = removed.ID
	return removed, nil
}

// Finish clears the pending marker and, on failure, reverts exactly the
// optimistic change that was applied for a.
func (m *AccessoryManager) Finish(a companion.Accessory, equip bool, failed bool) {
	delete(m.pending, a.Slot)
	if !failed {
		return
	}
	if equip {
		if current, ok := m.loadout[a.Slot]; ok && current.ID == a.ID {
			m.loadout, _, _ = m.loadout.Unequip(a.ID)
		}
		return
	}
	if _, occupied := m.loadout[a.Slot]; !occupied {
		m.loadout = m.loadout.Equip(a)
	}
}

// Reset drops everything. Used on teardown.
func (m *AccessoryManager) Reset() {
	m.entries = nil
	m.loadout = companion.Loadout{}
	m.pending = make(map[companion.Slot]string)
}

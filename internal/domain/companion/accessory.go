package companion

import (
	"sort"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SLOTS
// ══════════════════════════════════════════════════════════════════════════════

// Slot is an attachment point. Slots are independent; each holds at most one accessory.
type Slot string

const (
	SlotHead Slot = "head"
	SlotNeck Slot = "neck"
	SlotBody Slot = "body"
	SlotHeld Slot = "held"
)

// AllSlots lists slots in display order.
var AllSlots = []Slot{SlotHead, SlotNeck, SlotBody, SlotHeld}

// IsValid checks that the slot is one of the known attachment points.
func (s Slot) IsValid() bool {
	switch s {
	case SlotHead, SlotNeck, SlotBody, SlotHeld:
		return true
	default:
		return false
	}
}

func (s Slot) order() int {
	for i, slot := range AllSlots {
		if slot == s {
			return i
		}
	}
	return len(AllSlots)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// StatsBoost maps a vital to the amount an equipped accessory adds to it.
type StatsBoost map[Vital]int

// Accessory is immutable catalog reference data.
type Accessory struct {
	ID            string
	Name          string
	Description   string
	Slot          Slot
	LevelRequired Level
	StatsBoost    StatsBoost
}

// UnlockedAt reports whether a companion at the given level may wear the accessory.
func (a Accessory) UnlockedAt(level Level) bool {
	return level >= a.LevelRequired
}

// Catalog is the full list of unlockable accessories.
type Catalog []Accessory

// Find looks an accessory up by ID.
func (c Catalog) Find(id string) (Accessory, bool) {
	for _, a := range c {
		if a.ID == id {
			return a, true
		}
	}
	return Accessory{}, false
}

// UnlockedBetween returns accessories whose requirement lies in (oldLevel, newLevel],
// ordered by requirement then ID. Empty when the level did not rise.
func (c Catalog) UnlockedBetween(oldLevel, newLevel Level) []Accessory {
	if newLevel <= oldLevel {
		return nil
	}
	var unlocked []Accessory
	for _, a := range c {
		if a.LevelRequired > oldLevel && a.LevelRequired <= newLevel {
			unlocked = append(unlocked, a)
		}
	}
	sort.Slice(unlocked, func(i, j int) bool {
		if unlocked[i].LevelRequired != unlocked[j].LevelRequired {
			return unlocked[i].LevelRequired < unlocked[j].LevelRequired
		}
		return unlocked[i].ID < unlocked[j].ID
	})
	return unlocked
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADOUT (equipped accessories)
// ══════════════════════════════════════════════════════════════════════════════

// Loadout is the set of equipped accessories keyed by slot.
// Treat it as a value: Equip and Unequip return modified copies.
type Loadout map[Slot]Accessory

// Has reports whether the accessory is equipped.
func (l Loadout) Has(accessoryID string) bool {
	_, ok := l.slotOf(accessoryID)
	return ok
}

func (l Loadout) slotOf(accessoryID string) (Slot, bool) {
	for slot, a := range l {
		if a.ID == accessoryID {
			return slot, true
		}
	}
	return "", false
}

// CheckEquip validates an equip request against the current level.
// Equipping an accessory that is already worn is allowed and changes nothing.
func (l Loadout) CheckEquip(a Accessory, level Level) error {
	if !a.Slot.IsValid() {
		return shared.ErrInvalidSlot
	}
	if !a.UnlockedAt(level) {
		return shared.ErrLevelRequirement
	}
	if current, ok := l[a.Slot]; ok && current.ID != a.ID {
		return shared.ErrSlotOccupied
	}
	return nil
}

// Equip returns a loadout with the accessory placed in its slot.
func (l Loadout) Equip(a Accessory) Loadout {
	next := l.Clone()
	next[a.Slot] = a
	return next
}

// Unequip returns a loadout without the accessory and the accessory removed.
func (l Loadout) Unequip(accessoryID string) (Loadout, Accessory, error) {
	slot, ok := l.slotOf(accessoryID)
	if !ok {
		return l, Accessory{}, shared.ErrNotEquipped
	}
	removed := l[slot]
	next := l.Clone()
	delete(next, slot)
	return next, removed, nil
}

// Clone copies the loadout.
func (l Loadout) Clone() Loadout {
	next := make(Loadout, len(l))
	for slot, a := range l {
		next[slot] = a
	}
	return next
}

// List returns the equipped accessories in slot order.
func (l Loadout) List() []Accessory {
	items := make([]Accessory, 0, len(l))
	for _, a := range l {
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Slot.order() < items[j].Slot.order()
	})
	return items
}

// Boost sums the stat boosts of every equipped accessory.
func (l Loadout) Boost() Vitals {
	var total Vitals
	for _, a := range l {
		total.Happiness += a.StatsBoost[VitalHappiness]
		total.Energy += a.StatsBoost[VitalEnergy]
	}
	return total
}

// Boosted is the display overlay: base vitals plus equipped boosts, clamped.
// The base vitals are not modified.
func Boosted(base Vitals, l Loadout) Vitals {
	boost := l.Boost()
	return base.Apply(boost.Happiness, boost.Energy)
}

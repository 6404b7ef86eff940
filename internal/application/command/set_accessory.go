package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET ACCESSORY COMMAND
// Equips or unequips one accessory. Requirements are checked against the
// stored level, never against a level claimed by the caller.
// ══════════════════════════════════════════════════════════════════════════════

// SetAccessoryCommand equips (Equip=true) or unequips an accessory.
type SetAccessoryCommand struct {
	OwnerID     string
	AccessoryID string
	Equip       bool
}

// SetAccessoryResult reports the accessory state and the boosted stats.
type SetAccessoryResult struct {
	AccessoryID string
	Equipped    bool
	Stats       companion.Vitals
}

// SetAccessoryHandler handles the SetAccessoryCommand.
type SetAccessoryHandler struct {
	deps Deps
}

// NewSetAccessoryHandler creates a new SetAccessoryHandler.
func NewSetAccessoryHandler(deps Deps) *SetAccessoryHandler {
	return &SetAccessoryHandler{deps: deps.withDefaults()}
}

// Handle executes the command. Unequipping something that is not worn succeeds.
func (h *SetAccessoryHandler) Handle(ctx context.Context, cmd SetAccessoryCommand) (*SetAccessoryResult, error) {
	if cmd.AccessoryID == "" {
		return nil, shared.NewDomainError("accessory", "Set", shared.ErrEmptyValue, "accessory_id is required")
	}

	pet, err := h.deps.Pets.GetByOwner(ctx, cmd.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("set_accessory: %w", err)
	}
	accessory, err := h.deps.Accessories.Get(ctx, cmd.AccessoryID)
	if err != nil {
		return nil, fmt.Errorf("set_accessory: %w", err)
	}
	loadout, err := h.deps.Accessories.Loadout(ctx, pet.ID)
	if err != nil {
		return nil, fmt.Errorf("set_accessory: loadout: %w", err)
	}

	changed := false
	if cmd.Equip {
		if err := loadout.CheckEquip(accessory, pet.Level); err != nil {
			return nil, err
		}
		if !loadout.Has(accessory.ID) {
			if err := h.deps.Accessories.Equip(ctx, pet.ID, accessory); err != nil {
				return nil, fmt.Errorf("set_accessory: %w", err)
			}
			loadout = loadout.Equip(accessory)
			changed = true
		}
	} else if loadout.Has(accessory.ID) {
		if err := h.deps.Accessories.Unequip(ctx, pet.ID, accessory.ID); err != nil && !errors.Is(err, shared.ErrNotEquipped) {
			return nil, fmt.Errorf("set_accessory: %w", err)
		}
		loadout, _, _ = loadout.Unequip(accessory.ID)
		changed = true
	}

	if changed {
		h.deps.publish(shared.NewAccessoryChangedEvent(pet.ID, accessory.ID, string(accessory.Slot), cmd.Equip, h.deps.Now()))
	}

	return &SetAccessoryResult{
		AccessoryID: accessory.ID,
		Equipped:    loadout.Has(accessory.ID),
		Stats:       companion.Boosted(pet.Vitals, loadout),
	}, nil
}

package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENAME PET COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// RenamePetCommand changes the display name.
type RenamePetCommand struct {
	OwnerID string
	Name    string
}

// RenamePetHandler handles the RenamePetCommand.
type RenamePetHandler struct {
	deps Deps
}

// NewRenamePetHandler creates a new RenamePetHandler.
func NewRenamePetHandler(deps Deps) *RenamePetHandler {
	return &RenamePetHandler{deps: deps.withDefaults()}
}

// Handle executes the rename command and returns the updated companion.
func (h *RenamePetHandler) Handle(ctx context.Context, cmd RenamePetCommand) (*companion.Pet, error) {
	name, err := companion.ValidateName(cmd.Name)
	if err != nil {
		return nil, err
	}

	pet, err := h.deps.Pets.GetByOwner(ctx, cmd.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("rename_pet: %w", err)
	}

	oldName := pet.Name
	if err := pet.Rename(name, h.deps.Now()); err != nil {
		return nil, err
	}
	if oldName == pet.Name {
		return pet, nil
	}

	if err := h.deps.Pets.Update(ctx, pet); err != nil {
		return nil, fmt.Errorf("rename_pet: %w", err)
	}
	h.deps.invalidate(ctx, pet.OwnerID)
	h.deps.publish(shared.NewCompanionRenamedEvent(pet.ID, oldName, pet.Name, pet.UpdatedAt))

	return pet, nil
}

package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE PET COMMAND
// Removes the companion together with its equipped accessories.
// ══════════════════════════════════════════════════════════════════════════════

// DeletePetCommand removes the owner's companion.
type DeletePetCommand struct {
	OwnerID string
}

// DeletePetHandler handles the DeletePetCommand.
type DeletePetHandler struct {
	deps Deps
}

// NewDeletePetHandler creates a new DeletePetHandler.
func NewDeletePetHandler(deps Deps) *DeletePetHandler {
	return &DeletePetHandler{deps: deps.withDefaults()}
}

// Handle executes the delete command.
func (h *DeletePetHandler) Handle(ctx context.Context, cmd DeletePetCommand) error {
	pet, err := h.deps.Pets.GetByOwner(ctx, cmd.OwnerID)
	if err != nil {
		return fmt.Errorf("delete_pet: %w", err)
	}

	if err := h.deps.Pets.Delete(ctx, cmd.OwnerID); err != nil {
		return fmt.Errorf("delete_pet: %w", err)
	}
	if f, ok := h.deps.Accessories.(interface{ Forget(petID string) }); ok {
		f.Forget(pet.ID)
	}
	h.deps.invalidate(ctx, cmd.OwnerID)

	h.deps.Logger.Info("companion removed", logger.OwnerID(cmd.OwnerID), logger.PetID(pet.ID))
	h.deps.publish(shared.NewCompanionRemovedEvent(pet.ID, pet.OwnerID, h.deps.Now()))
	return nil
}

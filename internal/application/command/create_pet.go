package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PET COMMAND
// Adopts the owner's one and only companion.
// ══════════════════════════════════════════════════════════════════════════════

// CreatePetCommand contains the data needed to adopt a companion.
type CreatePetCommand struct {
	OwnerID string
	Name    string
	Species companion.Species
}

// Validate validates the command. Name and species are checked by the domain.
func (c CreatePetCommand) Validate() error {
	if c.OwnerID == "" {
		return shared.WrapError("companion", "Create", shared.ErrEmptyValue, "owner is required", errOwnerRequired)
	}
	return nil
}

// CreatePetHandler handles the CreatePetCommand.
type CreatePetHandler struct {
	deps    Deps
	initial companion.Vitals
	newID   func() string
}

// NewCreatePetHandler creates a new CreatePetHandler. initial seeds the vitals
// of every new companion.
func NewCreatePetHandler(deps Deps, initial companion.Vitals) *CreatePetHandler {
	return &CreatePetHandler{
		deps:    deps.withDefaults(),
		initial: initial.Clamped(),
		newID:   uuid.NewString,
	}
}

// Handle executes the create pet command.
func (h *CreatePetHandler) Handle(ctx context.Context, cmd CreatePetCommand) (*companion.Pet, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	pet, err := companion.NewPet(companion.NewPetParams{
		ID:      h.newID(),
		OwnerID: cmd.OwnerID,
		Name:    cmd.Name,
		Species: cmd.Species,
		Level:   companion.MinLevel,
		Vitals:  h.initial,
		Now:     h.deps.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.deps.Pets.Create(ctx, pet); err != nil {
		return nil, fmt.Errorf("create_pet: %w", err)
	}
	h.deps.invalidate(ctx, pet.OwnerID)

	h.deps.Logger.Info("companion adopted",
		logger.OwnerID(pet.OwnerID),
		logger.PetID(pet.ID),
		logger.String("species", string(pet.Species)),
	)
	h.deps.publish(shared.NewCompanionCreatedEvent(pet.ID, pet.OwnerID, pet.Name, string(pet.Species), pet.CreatedAt))

	return pet, nil
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alem-hub/alem-companion/internal/application/command"
	"github.com/alem-hub/alem-companion/internal/contract"
	"github.com/alem-hub/alem-companion/internal/domain/companion"
	"github.com/alem-hub/alem-companion/internal/domain/shared"
	"github.com/alem-hub/alem-companion/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := contract.HealthResponse{Status: "ok", Checks: make(map[string]string, len(s.deps.Checks))}
	status := http.StatusOK
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// PET
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetPet(w http.ResponseWriter, r *http.Request) {
	pet, err := s.deps.GetPet.Handle(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.PetResponse{Pet: contract.PetFromDomain(pet)})
}

func (s *Server) handleCreatePet(w http.ResponseWriter, r *http.Request) {
	var req contract.CreatePetRequest
	if !s.decode(w, r, &req) {
		return
	}

	pet, err := s.deps.CreatePet.Handle(r.Context(), command.CreatePetCommand{
		OwnerID: ownerFrom(r.Context()),
		Name:    req.Name,
		Species: companion.Species(req.Species),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contract.PetResponse{Pet: contract.PetFromDomain(pet)})
}

func (s *Server) handleRenamePet(w http.ResponseWriter, r *http.Request) {
	var req contract.RenamePetRequest
	if !s.decode(w, r, &req) {
		return
	}

	pet, err := s.deps.RenamePet.Handle(r.Context(), command.RenamePetCommand{
		OwnerID: ownerFrom(r.Context()),
		Name:    req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.PetResponse{Pet: contract.PetFromDomain(pet)})
}

func (s *Server) handleDeletePet(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeletePet.Handle(r.Context(), command.DeletePetCommand{OwnerID: ownerFrom(r.Context())}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSyncLevel(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.SyncLevel.Handle(r.Context(), command.SyncLevelCommand{
		OwnerID:       ownerFrom(r.Context()),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.SyncLevelResponse{
		OldLevel:            int(res.OldLevel),
		NewLevel:            int(res.NewLevel),
		LevelUps:            res.LevelUps,
		UnlockedAccessories: contract.AccessoriesFromDomain(res.Unlocked),
		UserLevel:           int(res.UserLevel),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESSORIES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListAccessories(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListAccessories.Handle(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]contract.CatalogAccessoryDTO, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, contract.CatalogAccessoryDTO{
			AccessoryDTO: contract.AccessoryFromDomain(item.Accessory),
			Unlocked:     item.Unlocked,
		})
	}
	writeJSON(w, http.StatusOK, contract.AccessoriesResponse{
		AvailableAccessories: items,
		UserLevel:            int(list.UserLevel),
	})
}

func (s *Server) handleListEquipped(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListEquipped.Handle(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.EquippedResponse{
		EquippedAccessories: contract.AccessoriesFromDomain(list.Accessories),
		PetStats:            contract.StatsFromDomain(list.Stats),
	})
}

func (s *Server) handleSetAccessory(w http.ResponseWriter, r *http.Request) {
	var req contract.SetAccessoryRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.deps.SetAccessory.Handle(r.Context(), command.SetAccessoryCommand{
		OwnerID:     ownerFrom(r.Context()),
		AccessoryID: req.AccessoryID,
		Equip:       req.Equip,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract.SetAccessoryResponse{
		AccessoryID: res.AccessoryID,
		Equipped:    res.Equipped,
		PetStats:    contract.StatsFromDomain(res.Stats),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, shared.WrapError("http", "Decode", shared.ErrInvalidInput, "malformed JSON body", err))
		return false
	}
	return true
}

// statusFor maps an error kind to the status and code of the error envelope.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, contract.CodeUnauthorized
	case errors.Is(err, shared.ErrLevelRequirement):
		return http.StatusForbidden, contract.CodeLevelRequirement
	case errors.Is(err, shared.ErrSlotOccupied):
		return http.StatusConflict, contract.CodeSlotOccupied
	case errors.Is(err, shared.ErrLearnerNotFound):
		// The companion exists; the platform does not know its owner.
		return http.StatusBadGateway, contract.CodeUnavailable
	case shared.IsNotFound(err):
		return http.StatusNotFound, contract.CodeNotFound
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, contract.CodeAlreadyExists
	case shared.IsValidation(err):
		return http.StatusBadRequest, contract.CodeValidation
	case shared.IsPrecondition(err):
		return http.StatusUnprocessableEntity, contract.CodeValidation
	case shared.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, contract.CodeUnavailable
	default:
		return http.StatusInternalServerError, contract.CodeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("path", r.URL.Path), logger.Err(err))
		if status == http.StatusInternalServerError {
			message = "an unexpected error occurred"
		}
	} else {
		log.Debug("request rejected", logger.String("path", r.URL.Path), logger.String("code", code), logger.Err(err))
	}

	writeJSONError(w, status, code, message)
}

// Package contract defines the JSON bodies exchanged between the companion
// backend and its clients, and the conversions to and from domain values.
package contract

import (
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeNotFound         = "not_found"
	CodeAlreadyExists    = "already_exists"
	CodeUnauthorized     = "unauthorized"
	CodeLevelRequirement = "level_requirement"
	CodeSlotOccupied     = "slot_occupied"
	CodeValidation       = "validation"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

type CreatePetRequest struct {
	Name    string `json:"name"`
	Species string `json:"species"`
}

type RenamePetRequest struct {
	Name string `json:"name"`
}

type SetAccessoryRequest struct {
	AccessoryID string `json:"accessory_id"`
	Equip       bool   `json:"equip"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// PetDTO is the wire form of a companion.
type PetDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Species    string     `json:"species"`
	Level      int        `json:"level"`
	Happiness  int        `json:"happiness"`
	Energy     int        `json:"energy"`
	LastFed    *time.Time `json:"last_fed"`
	LastPlayed *time.Time `json:"last_played"`
	CreatedAt  time.Time  `json:"created_at"`
}

type PetResponse struct {
	Pet PetDTO `json:"pet"`
}

// StatsDTO carries boosted vitals.
type StatsDTO struct {
	Happiness int `json:"happiness"`
	Energy    int `json:"energy"`
}

type AccessoryDTO struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Slot          string         `json:"slot"`
	LevelRequired int            `json:"level_required"`
	StatsBoost    map[string]int `json:"stats_boost"`
}

// CatalogAccessoryDTO adds the unlock flag computed at listing time.
type CatalogAccessoryDTO struct {
	AccessoryDTO
	Unlocked bool `json:"unlocked"`
}

type SyncLevelResponse struct {
	OldLevel            int            `json:"old_level"`
	NewLevel            int            `json:"new_level"`
	LevelUps            int            `json:"level_ups"`
	UnlockedAccessories []AccessoryDTO `json:"unlocked_accessories"`
	UserLevel           int            `json:"user_level"`
}

type AccessoriesResponse struct {
	AvailableAccessories []CatalogAccessoryDTO `json:"available_accessories"`
	UserLevel            int                   `json:"user_level"`
}

type SetAccessoryResponse struct {
	AccessoryID string   `json:"accessory_id"`
	Equipped    bool     `json:"equipped"`
	PetStats    StatsDTO `json:"pet_stats"`
}

type EquippedResponse struct {
	EquippedAccessories []AccessoryDTO `json:"equipped_accessories"`
	PetStats            StatsDTO       `json:"pet_stats"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSIONS
// ══════════════════════════════════════════════════════════════════════════════

// PetFromDomain converts a companion. Zero interaction times become null.
func PetFromDomain(p *companion.Pet) PetDTO {
	return PetDTO{
		ID:         p.ID,
		Name:       p.Name,
		Species:    string(p.Species),
		Level:      int(p.Level),
		Happiness:  p.Vitals.Happiness,
		Energy:     p.Vitals.Energy,
		LastFed:    timePtr(p.LastFed),
		LastPlayed: timePtr(p.LastPlayed),
		CreatedAt:  p.CreatedAt,
	}
}

// ToDomain converts back. OwnerID is not on the wire and stays empty.
func (d PetDTO) ToDomain() *companion.Pet {
	p := &companion.Pet{
		ID:        d.ID,
		Name:      d.Name,
		Species:   companion.Species(d.Species),
		Level:     max(companion.Level(d.Level), companion.MinLevel),
		Vitals:    companion.Vitals{Happiness: d.Happiness, Energy: d.Energy}.Clamped(),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.CreatedAt,
	}
	if d.LastFed != nil {
		p.LastFed = *d.LastFed
	}
	if d.LastPlayed != nil {
		p.LastPlayed = *d.LastPlayed
	}
	return p
}

func AccessoryFromDomain(a companion.Accessory) AccessoryDTO {
	boost := make(map[string]int, len(a.StatsBoost))
	for vital, amount := range a.StatsBoost {
		boost[string(vital)] = amount
	}
	return AccessoryDTO{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		Slot:          string(a.Slot),
		LevelRequired: int(a.LevelRequired),
		StatsBoost:    boost,
	}
}

func AccessoriesFromDomain(list []companion.Accessory) []AccessoryDTO {
	out := make([]AccessoryDTO, 0, len(list))
	for _, a := range list {
		out = append(out, AccessoryFromDomain(a))
	}
	return out
}

func (d AccessoryDTO) ToDomain() companion.Accessory {
	boost := make(companion.StatsBoost, len(d.StatsBoost))
	for vital, amount := range d.StatsBoost {
		boost[companion.Vital(vital)] = amount
	}
	return companion.Accessory{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Slot:          companion.Slot(d.Slot),
		LevelRequired: companion.Level(d.LevelRequired),
		StatsBoost:    boost,
	}
}

func AccessoriesToDomain(list []AccessoryDTO) []companion.Accessory {
	out := make([]companion.Accessory, 0, len(list))
	for _, d := range list {
		out = append(out, d.ToDomain())
	}
	return out
}

func StatsFromDomain(v companion.Vitals) StatsDTO {
	return StatsDTO{Happiness: v.Happiness, Energy: v.Energy}
}

func (s StatsDTO) ToDomain() companion.Vitals {
	return companion.Vitals{Happiness: s.Happiness, Energy: s.Energy}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

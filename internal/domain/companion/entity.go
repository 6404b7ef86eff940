// Package companion contains the domain model of a learner's virtual companion.
// This is the core of the business logic - no external dependencies here.
package companion

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alem-hub/alem-companion/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Level mirrors the learner's progression level. Never below MinLevel.
type Level int

// MinLevel is the level of a freshly adopted companion.
const MinLevel Level = 1

// IsValid reports whether the level is in range.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// LevelFromXP derives a progression level from platform XP: every 1000 XP is a level,
// starting at level 1.
func LevelFromXP(xp int) Level {
	if xp < 0 {
		return MinLevel
	}
	return MinLevel + Level(xp/1000)
}

// Species is set at adoption and never changes.
type Species string

const (
	SpeciesCat    Species = "cat"
	SpeciesDog    Species = "dog"
	SpeciesDragon Species = "dragon"
	SpeciesOwl    Species = "owl"
	SpeciesFox    Species = "fox"
)

// AllSpecies lists the adoptable species in display order.
var AllSpecies = []Species{SpeciesCat, SpeciesDog, SpeciesDragon, SpeciesOwl, SpeciesFox}

// IsValid checks that the species is one of the adoptable ones.
func (s Species) IsValid() bool {
	switch s {
	case SpeciesCat, SpeciesDog, SpeciesDragon, SpeciesOwl, SpeciesFox:
		return true
	default:
		return false
	}
}

// Vital names a decaying scalar attribute.
type Vital string

const (
	VitalHappiness Vital = "happiness"
	VitalEnergy    Vital = "energy"
)

// Vital bounds. Every mutation clamps into [MinVital, MaxVital].
const (
	MinVital = 0
	MaxVital = 100
)

// Clamp bounds v to [MinVital, MaxVital].
func Clamp(v int) int {
	return max(MinVital, min(v, MaxVital))
}

// Vitals holds the two decaying stats.
type Vitals struct {
	Happiness int `json:"happiness"`
	Energy    int `json:"energy"`
}

// Apply returns the vitals shifted by the deltas and clamped.
func (v Vitals) Apply(happinessDelta, energyDelta int) Vitals {
	return Vitals{
		Happiness: Clamp(v.Happiness + happinessDelta),
		Energy:    Clamp(v.Energy + energyDelta),
	}
}

// Clamped returns a copy with both stats forced into range.
func (v Vitals) Clamped() Vitals {
	return v.Apply(0, 0)
}

// Get returns the value of a single vital.
func (v Vitals) Get(vital Vital) int {
	switch vital {
	case VitalHappiness:
		return v.Happiness
	case VitalEnergy:
		return v.Energy
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PET
// ══════════════════════════════════════════════════════════════════════════════

// Pet is the stateful companion owned by a learner. One per owner.
type Pet struct {
	// ID is assigned at creation and never changes.
	ID string

	// OwnerID is the learner's platform login.
	OwnerID string

	// Name is owner-editable.
	Name string

	// Species is fixed at creation.
	Species Species

	// Level is written only by progression reconciliation.
	Level Level

	// Vitals are the base (unboosted) stats.
	Vitals Vitals

	// LastFed and LastPlayed are stamped only by successful interactions.
	LastFed    time.Time
	LastPlayed time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPetParams contains the parameters to adopt a new companion.
type NewPetParams struct {
	ID      string
	OwnerID string
	Name    string
	Species Species
	Level   Level
	Vitals  Vitals
	Now     time.Time
}

// NewPet creates a new companion with validation of all fields.
func NewPet(params NewPetParams) (*Pet, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("companion", "Create", shared.ErrEmptyValue, "pet id is required")
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, shared.NewDomainError("companion", "Create", shared.ErrEmptyValue, "owner id is required")
	}

	name, err := ValidateName(params.Name)
	if err != nil {
		return nil, err
	}

	if !params.Species.IsValid() {
		return nil, shared.ErrInvalidSpecies
	}

	level := params.Level
	if !level.IsValid() {
		level = MinLevel
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &Pet{
		ID:        params.ID,
		OwnerID:   params.OwnerID,
		Name:      name,
		Species:   params.Species,
		Level:     level,
		Vitals:    params.Vitals.Clamped(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateName trims the name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > 50 {
		return "", shared.ErrInvalidName
	}
	return name, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Rename changes the display name.
func (p *Pet) Rename(name string, now time.Time) error {
	valid, err := ValidateName(name)
	if err != nil {
		return err
	}
	p.Name = valid
	p.UpdatedAt = now
	return nil
}

// LevelChange describes the outcome of a reconciliation.
type LevelChange struct {
	Old Level
	New Level
}

// Ups returns how many levels were gained.
func (c LevelChange) Ups() int {
	if c.New <= c.Old {
		return 0
	}
	return int(c.New - c.Old)
}

// Raised reports whether the level went up.
func (c LevelChange) Raised() bool {
	return c.Ups() > 0
}

// RaiseTo moves the level up to target. Lower or equal targets leave the pet
// untouched, so repeated reconciliation with the same score is a no-op.
func (p *Pet) RaiseTo(target Level, now time.Time) LevelChange {
	change := LevelChange{Old: p.Level, New: p.Level}
	if target <= p.Level {
		return change
	}
	p.Level = target
	p.UpdatedAt = now
	change.New = target
	return change
}

// String returns a short representation for logging.
func (p *Pet) String() string {
	return fmt.Sprintf(
		"Pet{ID: %s, Owner: %s, Name: %s, Species: %s, Level: %d}",
		p.ID, p.OwnerID, p.Name, p.Species, p.Level,
	)
}

// Clone creates a copy of the pet.
func (p *Pet) Clone() *Pet {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

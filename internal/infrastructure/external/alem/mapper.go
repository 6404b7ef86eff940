package alem

import (
	"fmt"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

// Learner is the platform view of a companion owner.
type Learner struct {
	Login string
	XP    int
	Level companion.Level
}

// Mapper converts platform DTOs into domain values.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// LearnerFromDTO derives the learner's level from XP.
// The platform's own level field is ignored so that the rule stays in one place.
func (m *Mapper) LearnerFromDTO(dto *LearnerDTO) (Learner, error) {
	if dto == nil {
		return Learner{}, &MappingError{Field: "data", Reason: "missing"}
	}
	if dto.Login == "" {
		return Learner{}, &MappingError{Field: "login", Reason: "empty"}
	}
	if dto.XP < 0 {
		return Learner{}, &MappingError{Field: "xp", Reason: fmt.Sprintf("negative value %d", dto.XP)}
	}
	return Learner{
		Login: dto.Login,
		XP:    dto.XP,
		Level: companion.LevelFromXP(dto.XP),
	}, nil
}

// MappingError reports a DTO that cannot be turned into a domain value.
type MappingError struct {
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map learner: %s: %s", e.Field, e.Reason)
}

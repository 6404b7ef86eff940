package engine

import (
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

// Source names what triggered a vitals change.
type Source int

const (
	SourceDecay Source = iota
	SourceFeed
	SourcePlay
)

// StatStore is the single writer of the companion's vitals and identity fields.
// It is not safe for concurrent use; the Engine serializes access.
type StatStore struct {
	pet companion.Pet
}

// NewStatStore starts a store from a loaded or freshly created pet.
func NewStatStore(pet companion.Pet) *StatStore {
	pet.Vitals = pet.Vitals.Clamped()
	if !pet.Level.IsValid() {
		pet.Level = companion.MinLevel
	}
	return &StatStore{pet: pet}
}

// ApplyDelta shifts the vitals, clamping into range, and stamps the matching
// interaction timestamp for feed and play.
func (s *StatStore) ApplyDelta(happinessDelta, energyDelta int, source Source, at time.Time) companion.Vitals {
	s.pet.Vitals = s.pet.Vitals.Apply(happinessDelta, energyDelta)

	switch source {
	case SourceFeed:
		s.pet.LastFed = at
	case SourcePlay:
		s.pet.LastPlayed = at
	}
	return s.pet.Vitals
}

// Vitals returns the base vitals.
func (s *StatStore) Vitals() companion.Vitals {
	return s.pet.Vitals
}

// Level returns the synchronized level.
func (s *StatStore) Level() companion.Level {
	return s.pet.Level
}

// Pet returns a copy of the full record.
func (s *StatStore) Pet() companion.Pet {
	return s.pet
}

// raiseLevel is reserved to progression reconciliation.
func (s *StatStore) raiseLevel(target companion.Level, at time.Time) companion.LevelChange {
	return s.pet.RaiseTo(target, at)
}

func (s *StatStore) rename(name string, at time.Time) error {
	return s.pet.Rename(name, at)
}

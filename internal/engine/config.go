// Package engine is the client-resident model of a companion: vitals that decay
// over time, a display state derived from vitals, interaction locks and owner
// presence, and a level kept in step with the learner's progression.
//
// All state lives behind one mutex. Every mutation and the re-derivation that
// follows it happen in a single critical section, and observers only ever see
// immutable snapshots taken inside that section.
package engine

import "time"

// Config holds the tuning values of the engine. None of the magnitudes carry
// structural meaning; they are product settings.
type Config struct {
	// DecayInterval is the period of the background decay tick.
	DecayInterval time.Duration
	// DecayHappiness and DecayEnergy are subtracted on every decay tick.
	DecayHappiness int
	DecayEnergy    int

	// FeedEnergy is added to energy by a feed.
	FeedEnergy int
	// PlayHappiness is added to happiness by a play, PlayEnergyCost is subtracted from energy.
	PlayHappiness  int
	PlayEnergyCost int
	// LockDuration is how long an interaction pins the display state.
	LockDuration time.Duration

	// IdleAfter is the silence after which the owner is considered idle.
	IdleAfter time.Duration

	// SyncInterval is the period of progression reconciliation.
	SyncInterval time.Duration

	// CryingThreshold is the happiness at or below which the companion cries.
	CryingThreshold int

	// RequestTimeout bounds every backend call started by a timer.
	RequestTimeout time.Duration
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		DecayInterval:   time.Minute,
		DecayHappiness:  2,
		DecayEnergy:     1,
		FeedEnergy:      20,
		PlayHappiness:   15,
		PlayEnergyCost:  10,
		LockDuration:    3 * time.Second,
		IdleAfter:       10 * time.Second,
		SyncInterval:    5 * time.Minute,
		CryingThreshold: 10,
		RequestTimeout:  15 * time.Second,
	}
}

// withDefaults fills zero durations so no timer is armed with a zero period.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DecayInterval <= 0 {
		c.DecayInterval = d.DecayInterval
	}
	if c.LockDuration <= 0 {
		c.LockDuration = d.LockDuration
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = d.IdleAfter
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	return c
}

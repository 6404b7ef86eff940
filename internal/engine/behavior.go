package engine

import (
	"time"

	"github.com/alem-hub/alem-companion/internal/domain/companion"
)

// State is the discrete display state of the companion.
type State string

const (
	StateIdle     State = "idle"
	StateChilling State = "chilling"
	StateEating   State = "eating"
	StatePlaying  State = "playing"
	StateDancing  State = "dancing"
	StateCrying   State = "crying"
	StateDead     State = "dead"
)

// Baseline reports whether the state is one of the two low-intensity states
// chosen by owner presence.
func (s State) Baseline() bool {
	return s == StateIdle || s == StateChilling
}

// Inputs is everything the display state depends on.
type Inputs struct {
	Vitals          companion.Vitals
	Lock            *InteractionLock
	Present         bool
	Now             time.Time
	CryingThreshold int
}

// Derive computes the display state. First match wins.
func Derive(in Inputs) State {
	if in.Lock.Active(in.Now) {
		switch in.Lock.Kind {
		case LockFeeding:
			return StateEating
		case LockPlaying:
			return StatePlaying
		}
	}

	switch {
	case in.Vitals.Energy <= companion.MinVital:
		return StateDead
	case in.Vitals.Happiness <= in.CryingThreshold:
		return StateCrying
	case in.Vitals.Happiness >= companion.MaxVital || in.Vitals.Energy >= companion.MaxVital:
		return StateDancing
	case in.Present:
		return StateChilling
	default:
		return StateIdle
	}
}

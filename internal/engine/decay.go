package engine

import (
	"sync"
	"time"

	"github.com/alem-hub/alem-companion/pkg/timeutil"
)

// DecayScheduler lowers vitals on every tick.
type DecayScheduler struct {
	cfg Config
}

// NewDecayScheduler creates a decay policy with the given tuning.
func NewDecayScheduler(cfg Config) DecayScheduler {
	return DecayScheduler{cfg: cfg}
}

// Tick applies one decay step. The whole tick is skipped while an interaction
// lock is open. Returns whether anything was applied.
func (d DecayScheduler) Tick(store *StatStore, lock *InteractionLock, now time.Time) bool {
	if lock.Active(now) {
		return false
	}
	store.ApplyDelta(-d.cfg.DecayHappiness, -d.cfg.DecayEnergy, SourceDecay, now)
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Recurring timer
// ─────────────────────────────────────────────────────────────────────────────

// recurring calls fn every interval until stopped. The next run is armed after
// fn returns, so runs never overlap.
type recurring struct {
	clock    timeutil.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   timeutil.Timer
	stopped bool
}

func startRecurring(clock timeutil.Clock, interval time.Duration, fn func()) *recurring {
	r := &recurring{clock: clock, interval: interval, fn: fn}
	r.mu.Lock()
	r.arm()
	r.mu.Unlock()
	return r
}

// arm requires r.mu.
func (r *recurring) arm() {
	r.timer = r.clock.AfterFunc(r.interval, r.fire)
}

func (r *recurring) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.fn()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.arm()
	}
}

// Stop cancels the pending run. A run already in progress finishes but is not re-armed.
func (r *recurring) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

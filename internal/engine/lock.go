package engine

import "time"

// LockKind is the interaction that holds the lock.
type LockKind string

const (
	LockFeeding LockKind = "feeding"
	LockPlaying LockKind = "playing"
)

// InteractionLock pins the display state to an interaction animation until it expires.
type InteractionLock struct {
	Kind      LockKind
	ExpiresAt time.Time
}

// Active reports whether the lock still holds at now. A nil lock is never active.
func (l *InteractionLock) Active(now time.Time) bool {
	return l != nil && now.Before(l.ExpiresAt)
}

// Remaining returns the time left before expiry.
func (l *InteractionLock) Remaining(now time.Time) time.Duration {
	if !l.Active(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}

func (l *InteractionLock) clone() *InteractionLock {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

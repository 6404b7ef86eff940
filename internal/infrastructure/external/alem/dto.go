package alem

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// API RESPONSE WRAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse represents a generic API response wrapper.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// APIErrorDTO is the error body returned by the platform.
type APIErrorDTO struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("alem api %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("alem api %d: %s", e.StatusCode, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// LearnerDTO is the subset of the platform's student record the companion needs.
type LearnerDTO struct {
	ID    string `json:"id"`
	Login string `json:"login"`

	// XP is the progression score. Everything else is derived from it.
	XP int `json:"xp"`

	// Level as reported by the platform. Not authoritative; see Mapper.
	Level int `json:"level,omitempty"`

	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

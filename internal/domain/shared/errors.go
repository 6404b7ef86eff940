// Package shared contains common domain types, errors and events
// that are used across the companion packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrPrecondition = errors.New("precondition not met")
	ErrConflict     = errors.New("conflicting state")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")

	// Lifecycle errors
	ErrDisposed = errors.New("disposed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "companion", "accessory", "progression"
	Op      string // Operation that failed, e.g., "Create", "Equip"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Companion errors
var (
	ErrCompanionNotFound      = NewDomainError("companion", "Find", ErrNotFound, "companion not found")
	ErrCompanionAlreadyExists = NewDomainError("companion", "Create", ErrAlreadyExists, "owner already has a companion")
	ErrInvalidName            = NewDomainError("companion", "Validate", ErrInvalidInput, "name must be 1-50 characters")
	ErrInvalidSpecies         = NewDomainError("companion", "Validate", ErrInvalidInput, "unknown species")
	ErrLevelDecrease          = NewDomainError("companion", "SetLevel", ErrPrecondition, "level cannot decrease")
)

// Accessory errors
var (
	ErrAccessoryNotFound = NewDomainError("accessory", "Find", ErrNotFound, "accessory not found")
	ErrLevelRequirement  = NewDomainError("accessory", "Equip", ErrPrecondition, "level requirement not met")
	ErrSlotOccupied      = NewDomainError("accessory", "Equip", ErrConflict, "slot is occupied by another accessory")
	ErrNotEquipped       = NewDomainError("accessory", "Unequip", ErrPrecondition, "accessory is not equipped")
	ErrInvalidSlot       = NewDomainError("accessory", "Validate", ErrInvalidInput, "unknown slot")
)

// Session and platform errors
var (
	ErrSessionInvalid       = NewDomainError("session", "Authenticate", ErrUnauthorized, "session is invalid or expired")
	ErrPlatformUnavailable  = NewDomainError("platform", "Request", ErrServiceUnavailable, "learning platform is unavailable")
	ErrLearnerNotFound      = NewDomainError("platform", "Find", ErrNotFound, "learner not found on platform")
	ErrBackendUnavailable   = NewDomainError("backend", "Request", ErrServiceUnavailable, "companion backend is unavailable")
	ErrBackendInvalidAnswer = NewDomainError("backend", "Parse", ErrExternalService, "invalid response from companion backend")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsUnauthorized checks if the error means the session must be re-established.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsPrecondition checks if the error is a rejected precondition or conflict.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition) || errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried on the next schedule.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrExternalService)
}

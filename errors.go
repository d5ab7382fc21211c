package batterybank

import (
	"errors"
	"fmt"

	"github.com/xraph/batterybank/authz"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrAlreadyExists = errors.New("batterybank: already exists")
	ErrInvalidInput  = errors.New("batterybank: invalid input")
	ErrUnauthorized  = authz.ErrUnauthorized

	// Facility errors
	ErrFacilityNotFound = errors.New("batterybank: facility not found")

	// Ledger errors
	ErrLedgerNotFound     = errors.New("batterybank: ledger not found")
	ErrInvalidAmount      = producer.ErrInvalidAmount
	ErrInsufficientEnergy = producer.ErrInsufficientEnergy
	ErrCapacityExceeded   = producer.ErrCapacityExceeded
	ErrOverflow           = reconcile.ErrOverflow

	// Store errors
	ErrConflict    = errors.New("batterybank: concurrent modification")
	ErrStoreClosed = errors.New("batterybank: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("batterybank: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ValidationError against ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFacilityNotFound) ||
		errors.Is(err, ErrLedgerNotFound)
}

// IsRejected returns true if the operation was refused by a validation,
// authorization or accounting rule. Retrying the same request fails again.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInsufficientEnergy) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrOverflow)
}

// IsRetryable returns true if the operation lost a race with a concurrent
// writer and can be retried from a fresh read.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

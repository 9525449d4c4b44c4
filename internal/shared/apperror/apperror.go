// Package apperror holds the caller-facing error taxonomy of the reservation
// and booking core. Every value here is recoverable: handlers translate it
// into a 4xx response and never retry. Anything that does not match one of
// these sentinels is an infrastructure failure.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a seat, reservation or booking does not exist
	// (or is not visible to the caller).
	ErrNotFound = errors.New("not found")

	// ErrNotOwned is returned when the caller is not the owner of the resource.
	ErrNotOwned = errors.New("resource does not belong to user")

	// ErrInvalidState is returned when the operation is not legal for the
	// current status of the resource.
	ErrInvalidState = errors.New("invalid state")

	// ErrSeatAlreadyHeld is returned to every competitor that loses a seat claim.
	ErrSeatAlreadyHeld = errors.New("seat is already held")

	// ErrSeatAlreadyBooked is a lost claim against a confirmed booking.
	ErrSeatAlreadyBooked = fmt.Errorf("%w: seat is already booked", ErrSeatAlreadyHeld)

	// ErrExpired is returned when a hold timed out before payment.
	ErrExpired = errors.New("reservation has expired")

	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	ErrQuotaExceeded = errors.New("daily booking limit reached")

	// ErrValidation covers malformed passenger fields, amounts and query options.
	ErrValidation = errors.New("validation failed")
)

var domainErrors = []error{
	ErrNotFound,
	ErrNotOwned,
	ErrInvalidState,
	ErrSeatAlreadyHeld,
	ErrExpired,
	ErrInsufficientBalance,
	ErrQuotaExceeded,
	ErrValidation,
}

// IsDomain reports whether err belongs to the taxonomy above.
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Validation wraps ErrValidation with a field-level reason.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

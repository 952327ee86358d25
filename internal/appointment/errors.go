package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrAdvisorNotFound     = errors.New("advisor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("requested time slot is not available")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAccessDenied        = errors.New("access denied to appointment")
	ErrStoreUnavailable    = errors.New("appointment store unavailable")
	ErrInvalidRequest      = errors.New("invalid request")

	// ErrStatusChanged is returned by Repository.UpdateStatus when the row
	// no longer has the expected status.
	ErrStatusChanged = errors.New("appointment status changed concurrently")

	// ErrDuplicateIdempotencyKey is returned by Repository.Create when the
	// patient already used the key.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

	ErrInvalidWorkingHours = errors.New("invalid working hours")
)

// IsRetryable reports whether retrying the same call can succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// storeErr keeps domain errors as they are and classifies everything else
// (driver errors, deadlines, lock timeouts) as ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{
		ErrAdvisorNotFound,
		ErrAppointmentNotFound,
		ErrSlotUnavailable,
		ErrInvalidTransition,
		ErrAccessDenied,
		ErrInvalidRequest,
		ErrStatusChanged,
		ErrDuplicateIdempotencyKey,
		ErrInvalidWorkingHours,
		ErrStoreUnavailable,
	} {
		if errors.Is(err, domain) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Package common defines shared constants and sentinel errors used across
// client and server layers of timevault. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Cryptographic layer. Decryption failures are deliberately a single
	// opaque value.
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrCorruptPayload        = errors.New("corrupt payload")

	// Admission control.
	ErrAdmissionDenied   = errors.New("admission denied")
	ErrChallengeExpired  = fmt.Errorf("%w: challenge expired", ErrAdmissionDenied)
	ErrChallengeConsumed = fmt.Errorf("%w: challenge already used", ErrAdmissionDenied)
	ErrPowExhausted      = errors.New("proof of work exhausted")
	ErrPayloadTooLarge   = errors.New("payload too large")

	// Secret lifecycle.
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrNotYetUnlocked   = errors.New("secret not yet unlocked")
	ErrAlreadyUnlocked  = errors.New("secret already unlocked")
	ErrAlreadyRetrieved = errors.New("secret already retrieved")
	ErrExpired          = errors.New("secret expired")
)

// TimeRangeError reports which scheduling constraint a request violated.
// It matches ErrInvalidTimeRange with errors.Is.
type TimeRangeError struct {
	Constraint string
}

func (e *TimeRangeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidTimeRange, e.Constraint)
}

func (e *TimeRangeError) Unwrap() error {
	return ErrInvalidTimeRange
}

// NewTimeRangeError builds a TimeRangeError with a formatted constraint.
func NewTimeRangeError(format string, args ...any) error {
	return &TimeRangeError{Constraint: fmt.Sprintf(format, args...)}
}

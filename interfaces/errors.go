package interfaces

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by the registry, guardian manager and orchestrator.
// Every validation failure is returned as one of these (possibly wrapped with
// context); a failed validation never mutates stored state.
var (
	// ErrInvalidInput is returned for malformed addresses, weights, thresholds
	// or share payloads.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotAuthorized is returned when the caller is neither the owner nor an
	// active guardian authorized for the operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotConfigured is returned when no recovery threshold has been set for
	// the owner, or the active guardian weight cannot satisfy it.
	ErrNotConfigured = errors.New("recovery not configured")

	// ErrAlreadyActive is returned when a second recovery is initiated while
	// one is already active for the owner.
	ErrAlreadyActive = errors.New("recovery already active")

	// ErrAlreadyApproved is returned when a guardian approves the same request
	// twice.
	ErrAlreadyApproved = errors.New("already approved")

	// ErrAlreadySubmitted is returned when a guardian submits a share to the
	// same session twice.
	ErrAlreadySubmitted = errors.New("share already submitted")

	// ErrAlreadyExecuted is returned for operations on an executed request or
	// session.
	ErrAlreadyExecuted = errors.New("already executed")

	// ErrAlreadyCancelled is returned for operations on a cancelled request or
	// session.
	ErrAlreadyCancelled = errors.New("already cancelled")

	// ErrAlreadyExists is returned when adding a guardian that is already
	// active for the owner.
	ErrAlreadyExists = errors.New("guardian already exists")

	// ErrNotFound is returned for unknown sessions, requests and guardians.
	ErrNotFound = errors.New("not found")

	// ErrThresholdNotMet is the class sentinel wrapped by ThresholdNotMetError.
	ErrThresholdNotMet = errors.New("threshold not met")

	// ErrTimeLockNotExpired is the class sentinel wrapped by TimeLockError.
	ErrTimeLockNotExpired = errors.New("time lock not expired")
)

// ThresholdNotMetError reports how much approval weight has been collected and
// how much the policy requires, so callers can render actionable guidance
// rather than a bare refusal.
type ThresholdNotMetError struct {
	Collected uint64
	Required  uint64
}

// Error implements the error interface.
func (e *ThresholdNotMetError) Error() string {
	return fmt.Sprintf("threshold not met: %d more approval weight required (%d of %d collected)",
		e.Remaining(), e.Collected, e.Required)
}

// Unwrap ties the structured error to its taxonomy class.
func (e *ThresholdNotMetError) Unwrap() error {
	return ErrThresholdNotMet
}

// Remaining returns the additional approval weight still required.
func (e *ThresholdNotMetError) Remaining() uint64 {
	if e.Collected >= e.Required {
		return 0
	}
	return e.Required - e.Collected
}

// TimeLockError reports how long the mandatory waiting period still has to
// run before execution is permitted.
type TimeLockError struct {
	Remaining time.Duration
}

// Error implements the error interface.
func (e *TimeLockError) Error() string {
	return fmt.Sprintf("time lock not expired: %s remaining", e.Remaining.Round(time.Second))
}

// Unwrap ties the structured error to its taxonomy class.
func (e *TimeLockError) Unwrap() error {
	return ErrTimeLockNotExpired
}

// RemainingHours returns the remaining lock time in whole hours, rounded up.
func (e *TimeLockError) RemainingHours() int64 {
	hours := int64(e.Remaining / time.Hour)
	if e.Remaining%time.Hour > 0 {
		hours++
	}
	return hours
}

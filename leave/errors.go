/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure is returned as an explicit, typed result - a failed balance
  read is never coerced into a zero balance, because a fabricated zero is
  indistinguishable from "no leave available".

ERROR CATEGORIES:
  1. Validation errors   - caller-correctable input problems
  2. Insufficient balance - remaining too low at reservation time
  3. Conflict errors     - invalid transitions, lost CAS races, double resolution
  4. Unauthorized errors - missing role or self-approval
  5. Not found errors    - unknown request/employee

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) { ... }

  var conflict *leave.ConflictError
  if errors.As(err, &conflict) { ... }
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all caller-correctable input errors.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a reservation exceeds remaining.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict covers invalid state transitions and concurrent-modification
	// races that exhausted their bounded retries.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when the actor lacks the required capability.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for unknown request or employee identifiers.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned by stores when an optimistic
	// write loses its version check. Callers retry a bounded number of
	// times before surfacing ErrConflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a caller-correctable input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError reports a balance shortage. Remaining carries the
// actual remaining amount so the caller can present it.
type InsufficientBalanceError struct {
	EmployeeID string
	Category   Category
	Requested  decimal.Decimal
	Remaining  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: requested %s, remaining %s",
		e.Category, e.EmployeeID, e.Requested, e.Remaining)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ConflictError reports an invalid transition or a lost concurrency race.
type ConflictError struct {
	RequestID string
	Current   Status
	Requested Status
	Message   string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid transition for request %s: %s -> %s",
		e.RequestID, e.Current, e.Requested)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// UnauthorizedError reports a missing capability or a self-approval attempt.
type UnauthorizedError struct {
	ActorID string
	Reason  string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s unauthorized: %s", e.ActorID, e.Reason)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// NotFoundError identifies the missing entity kind and id.
type NotFoundError struct {
	Kind string // "request", "balance", "employee"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsConflict returns true for transition and concurrency conflicts.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }

/*
Package leave implements the leave balance ledger and approval workflow engine.

PURPOSE:
  This package contains the domain types and algorithms for leave accounting:
  per-category balances with a reserve/commit/release protocol, a closed
  request state machine, and the orchestration that ties them together.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category: A closed set of leave buckets (annual, sick, ...)
  - Balance:  allocated/used/pending per (employee, category); remaining is derived
  - Request:  A leave request with a frozen business-day duration
  - Role:     Actor capability used by the approval processor

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all amounts (half-days are 0.5, never floats)
  2. Single writer: only the Ledger mutates used/pending
  3. Derived remaining: remaining = allocated - used - pending, never stored
  4. Immutable history: requests are never deleted, cancellation is a status

SEE ALSO:
  - ledger.go:      Balance mutation choke point
  - transitions.go: Request status transition table
  - coordinator.go: Submission and cancellation orchestration
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORY - Closed set of leave buckets
// =============================================================================

type Category string

const (
	CategoryAnnual    Category = "annual"
	CategorySick      Category = "sick"
	CategoryCasual    Category = "casual"
	CategoryMaternity Category = "maternity"
	CategoryPaternity Category = "paternity"
)

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryAnnual,
		CategorySick,
		CategoryCasual,
		CategoryMaternity,
		CategoryPaternity,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryAnnual, CategorySick, CategoryCasual, CategoryMaternity, CategoryPaternity:
		return true
	}
	return false
}

// =============================================================================
// BALANCE - Per (employee, category) ledger row
// =============================================================================

// Balance holds the leave accounting state for one (employee, category) pair.
//
// INVARIANTS (enforced by the Ledger on every write):
//   I1: Remaining() >= 0
//   I2: Used + Pending <= Allocated
//
// Remaining is always derived; there is no stored remaining field that can
// drift out of sync.
type Balance struct {
	EmployeeID string
	Category   Category

	// Allocated is set by HR policy (onboarding, annual reset).
	Allocated decimal.Decimal

	// Used is the sum of committed (approved, not cancelled) durations.
	Used decimal.Decimal

	// Pending is the sum of reserved-but-undecided durations.
	Pending decimal.Decimal

	// Version increments on every write. Used for optimistic concurrency.
	Version int64
}

// Remaining returns allocated - used - pending.
func (b Balance) Remaining() decimal.Decimal {
	return b.Allocated.Sub(b.Used).Sub(b.Pending)
}

// checkInvariants validates I1/I2 before a balance row is written back.
func (b Balance) checkInvariants() error {
	if b.Used.IsNegative() || b.Pending.IsNegative() || b.Allocated.IsNegative() {
		return &ConflictError{Message: "balance component went negative"}
	}
	if b.Used.Add(b.Pending).GreaterThan(b.Allocated) {
		return &ConflictError{Message: "used + pending exceeds allocation"}
	}
	return nil
}

// =============================================================================
// REQUEST - A leave request and its lifecycle state
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Request represents one leave request. Duration is computed once at
// submission and frozen; later changes to weekend rules must not silently
// alter stored history.
type Request struct {
	ID         string
	EmployeeID string
	Category   Category

	StartDate time.Time
	EndDate   time.Time
	HalfDay   bool

	// Duration in business days, frozen at submission.
	Duration decimal.Decimal

	Reason string
	Status Status

	AppliedAt time.Time

	// Decision metadata. Set atomically with the transition into
	// approved/rejected; a request is never observed in a decided state
	// without them.
	DecidedBy    *string
	DecidedAt    *time.Time
	DecisionNote *string
}

// Terminal reports whether no further transition is possible from s,
// except the one permitted approved -> cancelled edge.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// =============================================================================
// DECISIONS AND ROLES
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Role is a capability claim supplied by the external identity provider.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
)

// HasApproverRole reports whether any role carries decision capability.
func HasApproverRole(roles []Role) bool {
	for _, r := range roles {
		if r == RoleManager || r == RoleHR {
			return true
		}
	}
	return false
}

// =============================================================================
// RESERVATION OUTCOME
// =============================================================================

// Outcome is how a reservation is resolved once its request leaves pending.
type Outcome string

const (
	// OutcomeCommit moves the reserved amount from pending to used.
	OutcomeCommit Outcome = "commit"

	// OutcomeRelease returns the reserved amount to remaining.
	OutcomeRelease Outcome = "release"
)

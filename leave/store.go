/*
store.go - Persistence interfaces for balances and requests

PURPOSE:
  Defines the interface between the domain logic and the database.
  Implementations: store/sqlite (production) and leave/store (in-memory).

CONCURRENCY CONTRACT:
  Both stores use optimistic writes. A balance write carries the version the
  caller read; a request status write carries the status the caller observed.
  When the row moved underneath, the store returns ErrConcurrentModification
  and the caller retries (bounded) or surfaces a conflict. This is what makes
  "two submissions racing for the last unit" and "concurrent approve vs
  cancel" resolve to exactly one winner.

HISTORY CONTRACT:
  Requests are never deleted. Cancellation is a status change, so audit and
  payroll readers retain a consistent view. There is no Delete method on
  RequestStore by design.
*/
package leave

import (
	"context"
	"time"
)

// BalanceStore persists balance rows keyed by (employee, category).
type BalanceStore interface {
	// GetBalance returns the row or a NotFoundError. A read failure must
	// surface as an error, never as a zeroed balance.
	GetBalance(ctx context.Context, employeeID string, category Category) (Balance, error)

	// ListBalances returns all category rows for one employee,
	// in Categories() order. Empty result means unknown employee.
	ListBalances(ctx context.Context, employeeID string) ([]Balance, error)

	// CreateBalance inserts a new row with Version 1.
	// Fails with ErrConflict if the row already exists.
	CreateBalance(ctx context.Context, b Balance) error

	// UpdateBalance writes b if the stored version equals expectedVersion,
	// incrementing the version. Returns ErrConcurrentModification otherwise.
	UpdateBalance(ctx context.Context, b Balance, expectedVersion int64) error

	// ListEmployeeIDs returns the distinct employees holding balance rows.
	// Used by the allocation reset job.
	ListEmployeeIDs(ctx context.Context) ([]string, error)
}

// RequestStore persists leave requests.
type RequestStore interface {
	// CreateRequest inserts a new pending request.
	CreateRequest(ctx context.Context, r Request) error

	// GetRequest returns the request or a NotFoundError.
	GetRequest(ctx context.Context, id string) (Request, error)

	// UpdateRequest writes r if the stored status equals expected.
	// Returns ErrConcurrentModification when another writer got there
	// first. This is the serialization point for decisions/cancellations.
	UpdateRequest(ctx context.Context, r Request, expected Status) error

	// ListByEmployee returns all requests of one employee, newest first.
	ListByEmployee(ctx context.Context, employeeID string) ([]Request, error)

	// ListByStatus returns all requests in the given status, oldest first.
	ListByStatus(ctx context.Context, status Status) ([]Request, error)

	// ListApprovedInRange returns approved requests of an employee whose
	// date range overlaps [from, to]. Read-only view for payroll.
	ListApprovedInRange(ctx context.Context, employeeID string, from, to time.Time) ([]Request, error)
}

// Store combines both persistence concerns. The sqlite and memory
// implementations satisfy it with a single value.
type Store interface {
	BalanceStore
	RequestStore
}

/*
ledger.go - The single writer of leave balances

PURPOSE:
  Every mutation of used/pending goes through the Ledger. TryReserve is the
  one choke point where the invariants are checked and maintained:

    I1: remaining >= 0
    I2: used + pending <= allocated

CONCURRENCY:
  Mutations are optimistic: read the row, mutate, write back guarded by the
  version read. A lost race returns ErrConcurrentModification from the store
  and is retried up to maxWriteAttempts times; after that the caller gets a
  ConflictError rather than an unbounded wait. Rows for different employees
  or different categories of the same employee never contend.

RESERVATION PROTOCOL:
  TryReserve          pending += amount        (fails on remaining < amount)
  Resolve(Commit)     pending -= amount, used += amount
  Resolve(Release)    pending -= amount
  RestoreUsed         used -= amount           (approved -> cancelled only)

  Resolution idempotency is anchored on the request status transition: the
  caller resolves the reservation only after winning the status CAS, so a
  second resolution attempt for the same request never reaches the ledger.
  The pending/used underflow guards below are a second line of defense.
*/
package leave

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxWriteAttempts bounds optimistic-write retries per operation.
const maxWriteAttempts = 3

// Ledger is the authoritative component for balance state.
type Ledger struct {
	balances BalanceStore
	logger   *zap.Logger
}

func NewLedger(balances BalanceStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{balances: balances, logger: logger.Named("leave.ledger")}
}

// =============================================================================
// PRIVILEGED OPERATIONS
// =============================================================================

// TryReserve places a provisional hold of amount on the employee's balance.
// Succeeds only if remaining >= amount at the instant of the write; the
// losing side of a race over the last unit observes the winner's reservation
// and fails with InsufficientBalanceError.
func (l *Ledger) TryReserve(ctx context.Context, employeeID string, category Category, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "reservation amount must be positive"}
	}

	return l.mutate(ctx, employeeID, category, func(b *Balance) error {
		if b.Remaining().LessThan(amount) {
			return &InsufficientBalanceError{
				EmployeeID: employeeID,
				Category:   category,
				Requested:  amount,
				Remaining:  b.Remaining(),
			}
		}
		b.Pending = b.Pending.Add(amount)
		return nil
	})
}

// ResolveReservation settles a reservation previously placed by TryReserve.
// Commit moves the amount from pending to used; Release returns it to
// remaining. A resolution that would drive pending negative indicates a
// double release and is rejected as ConflictError.
func (l *Ledger) ResolveReservation(ctx context.Context, employeeID string, category Category, amount decimal.Decimal, outcome Outcome) error {
	return l.mutate(ctx, employeeID, category, func(b *Balance) error {
		if b.Pending.LessThan(amount) {
			return &ConflictError{Message: "reservation already resolved"}
		}
		b.Pending = b.Pending.Sub(amount)
		if outcome == OutcomeCommit {
			b.Used = b.Used.Add(amount)
		}
		return nil
	})
}

// RestoreUsed returns a committed amount to remaining. This is the distinct
// ledger operation behind approved -> cancelled: the amount already moved
// from pending to used at approval time, so a Release would not restore it.
func (l *Ledger) RestoreUsed(ctx context.Context, employeeID string, category Category, amount decimal.Decimal) error {
	return l.mutate(ctx, employeeID, category, func(b *Balance) error {
		if b.Used.LessThan(amount) {
			return &ConflictError{Message: "restore exceeds committed balance"}
		}
		b.Used = b.Used.Sub(amount)
		return nil
	})
}

// =============================================================================
// READS AND POLICY OPERATIONS
// =============================================================================

// GetBalance returns all category balances for an employee. An unknown
// employee is a NotFoundError, not an empty map: a fabricated empty result
// would be indistinguishable from "no leave available".
func (l *Ledger) GetBalance(ctx context.Context, employeeID string) (map[Category]Balance, error) {
	rows, err := l.balances.ListBalances(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Kind: "employee", ID: employeeID}
	}
	out := make(map[Category]Balance, len(rows))
	for _, b := range rows {
		out[b.Category] = b
	}
	return out, nil
}

// ResetAllocation sets the allocation for one (employee, category), creating
// the row when the employee is being onboarded. Existing used/pending are
// preserved; an allocation below the committed consumption would break I2
// and is rejected.
func (l *Ledger) ResetAllocation(ctx context.Context, employeeID string, category Category, allocated decimal.Decimal) error {
	if !category.Valid() {
		return &ValidationError{Field: "category", Message: "unknown leave category"}
	}
	if allocated.IsNegative() {
		return &ValidationError{Field: "allocated", Message: "allocation must be non-negative"}
	}

	apply := func(b *Balance) error {
		if b.Used.Add(b.Pending).GreaterThan(allocated) {
			return &ValidationError{Field: "allocated", Message: "allocation below committed consumption"}
		}
		b.Allocated = allocated
		return nil
	}

	err := l.mutate(ctx, employeeID, category, apply)
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	// Onboarding: no row yet for this (employee, category).
	createErr := l.balances.CreateBalance(ctx, Balance{
		EmployeeID: employeeID,
		Category:   category,
		Allocated:  allocated,
		Used:       decimal.Zero,
		Pending:    decimal.Zero,
	})
	if errors.Is(createErr, ErrConflict) {
		// Lost a create race; the row exists now, apply as an update with
		// the same consumption guard.
		return l.mutate(ctx, employeeID, category, apply)
	}
	return createErr
}

// =============================================================================
// OPTIMISTIC WRITE LOOP
// =============================================================================

// mutate runs fn against a fresh copy of the balance row and writes it back
// under the version read, retrying lost races a bounded number of times.
func (l *Ledger) mutate(ctx context.Context, employeeID string, category Category, fn func(*Balance) error) error {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		b, err := l.balances.GetBalance(ctx, employeeID, category)
		if err != nil {
			return err
		}

		version := b.Version
		if err := fn(&b); err != nil {
			return err
		}
		if err := b.checkInvariants(); err != nil {
			return err
		}

		err = l.balances.UpdateBalance(ctx, b, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}
		l.logger.Debug("balance write lost race, retrying",
			zap.String("employee_id", employeeID),
			zap.String("category", string(category)),
			zap.Int("attempt", attempt),
		)
	}
	return &ConflictError{Message: "balance contention: retries exhausted"}
}

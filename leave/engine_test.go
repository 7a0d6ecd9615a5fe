/*
engine_test.go - End-to-end workflow tests

Exercises the coordinator and processor together against the in-memory
store: submit, decide, cancel, and the concurrent decision races that the
status CAS is there to win.
*/
package leave_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

type engine struct {
	mem         *store.Memory
	ledger      *leave.Ledger
	coordinator *leave.Coordinator
	processor   *leave.Processor
}

// fixedNow keeps submissions deterministic: a Thursday well before the
// Monday-Friday ranges used in the scenarios.
var fixedNow = time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *engine {
	t.Helper()
	mem := store.NewMemory()
	ledger := leave.NewLedger(mem, nil)
	clock := func() time.Time { return fixedNow }
	return &engine{
		mem:         mem,
		ledger:      ledger,
		coordinator: leave.NewCoordinator(ledger, mem, nil, nil).WithClock(clock),
		processor:   leave.NewProcessor(ledger, mem, nil, nil).WithClock(clock),
	}
}

func (e *engine) seed(t *testing.T, employeeID string, category leave.Category, allocated int64) {
	t.Helper()
	err := e.mem.CreateBalance(context.Background(), leave.Balance{
		EmployeeID: employeeID,
		Category:   category,
		Allocated:  decimal.NewFromInt(allocated),
		Used:       decimal.Zero,
		Pending:    decimal.Zero,
	})
	require.NoError(t, err)
}

func (e *engine) balance(t *testing.T, employeeID string, category leave.Category) leave.Balance {
	t.Helper()
	b, err := e.mem.GetBalance(context.Background(), employeeID, category)
	require.NoError(t, err)
	return b
}

func assertBalance(t *testing.T, b leave.Balance, allocated, used, pending int64) {
	t.Helper()
	assert.True(t, b.Allocated.Equal(decimal.NewFromInt(allocated)), "allocated: want %d, got %s", allocated, b.Allocated)
	assert.True(t, b.Used.Equal(decimal.NewFromInt(used)), "used: want %d, got %s", used, b.Used)
	assert.True(t, b.Pending.Equal(decimal.NewFromInt(pending)), "pending: want %d, got %s", pending, b.Pending)
}

var managerRoles = []leave.Role{leave.RoleManager}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_FullWeek(t *testing.T) {
	// GIVEN: Balance {allocated:12, used:0, pending:0} for annual leave
	// WHEN: Submitting Monday-Friday (5 business days)
	// THEN: Request created pending with duration 5; balance {12, 0, 5}, remaining 7

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)

	req, err := e.coordinator.Submit(context.Background(), "emp-1", leave.CategoryAnnual,
		date(2026, time.March, 2), date(2026, time.March, 6), false, "family trip")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.True(t, req.Duration.Equal(decimal.NewFromInt(5)))

	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	assertBalance(t, b, 12, 0, 5)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(7)))
}

func TestSubmit_InsufficientBalanceCreatesNoRequest(t *testing.T) {
	// GIVEN: Balance {allocated:5, used:0, pending:0}
	// WHEN: Submitting a 6-business-day range
	// THEN: InsufficientBalanceError, balance unchanged, no request persisted

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 5)

	_, err := e.coordinator.Submit(context.Background(), "emp-1", leave.CategoryAnnual,
		date(2026, time.March, 2), date(2026, time.March, 9), false, "long break")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 5, 0, 0)

	reqs, err := e.mem.ListByEmployee(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestSubmit_WeekendOnlyRejected(t *testing.T) {
	// GIVEN: A Saturday-Sunday range (0 business days)
	// THEN: ValidationError instead of a silently-empty reservation

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)

	_, err := e.coordinator.Submit(context.Background(), "emp-1", leave.CategoryAnnual,
		date(2026, time.March, 7), date(2026, time.March, 8), false, "weekend")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
	assert.Contains(t, err.Error(), "zero-duration request")

	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 12, 0, 0)
}

func TestSubmit_PastStartDateRejected(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)

	_, err := e.coordinator.Submit(context.Background(), "emp-1", leave.CategoryAnnual,
		date(2025, time.December, 29), date(2025, time.December, 30), false, "backdated")
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestSubmit_HalfDay(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategorySick, 10)

	req, err := e.coordinator.Submit(context.Background(), "emp-1", leave.CategorySick,
		date(2026, time.March, 4), date(2026, time.March, 4), true, "doctor appointment")
	require.NoError(t, err)
	assert.Equal(t, "0.5", req.Duration.String())

	b := e.balance(t, "emp-1", leave.CategorySick)
	assert.Equal(t, "0.5", b.Pending.String())
	assert.Equal(t, "9.5", b.Remaining().String())
}

func TestSubmit_ConcurrentRequestsExceedingRemaining_OneWins(t *testing.T) {
	// GIVEN: 5 remaining; two 3-day requests that fit individually but not together
	// WHEN: Submitted concurrently
	// THEN: Exactly one is created; pending never exceeds the allocation

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.coordinator.Submit(context.Background(), "emp-1", leave.CategoryAnnual,
				date(2026, time.March, 2), date(2026, time.March, 4), false, "overlap race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	assertBalance(t, b, 5, 0, 3)

	reqs, err := e.mem.ListByEmployee(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

// =============================================================================
// DECISIONS
// =============================================================================

func submitWeek(t *testing.T, e *engine, employeeID string) leave.Request {
	t.Helper()
	req, err := e.coordinator.Submit(context.Background(), employeeID, leave.CategoryAnnual,
		date(2026, time.March, 2), date(2026, time.March, 6), false, "family trip")
	require.NoError(t, err)
	return req
}

func TestDecide_ApproveCommitsReservation(t *testing.T) {
	// GIVEN: The pending 5-day request with balance {12, 0, 5}
	// WHEN: A manager approves it
	// THEN: Status approved, balance {12, 5, 0}, remaining still 7

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	decided, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "enjoy")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "mgr-1", *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)
	require.NotNil(t, decided.DecisionNote)
	assert.Equal(t, "enjoy", *decided.DecisionNote)

	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	assertBalance(t, b, 12, 5, 0)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(7)))
}

func TestDecide_RejectReleasesReservation(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	decided, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionReject, "blackout period")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusRejected, decided.Status)
	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	assertBalance(t, b, 12, 0, 0)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(12)))
}

func TestDecide_RequiresApproverRole(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	_, err := e.processor.Decide(context.Background(), req.ID, "emp-2", []leave.Role{leave.RoleEmployee}, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}

func TestDecide_SelfApprovalRejected(t *testing.T) {
	// A manager submitting their own leave still cannot decide it.
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	_, err := e.processor.Decide(context.Background(), req.ID, "emp-1", managerRoles, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrUnauthorized)

	// The reservation stays pending, untouched by the refused decision.
	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 12, 0, 5)
}

func TestDecide_AlreadyDecidedIsConflict(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	_, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.NoError(t, err)

	_, err = e.processor.Decide(context.Background(), req.ID, "mgr-2", managerRoles, leave.DecisionReject, "")
	assert.ErrorIs(t, err, leave.ErrConflict)
}

func TestDecide_UnknownRequest(t *testing.T) {
	e := newEngine(t)
	_, err := e.processor.Decide(context.Background(), "no-such-id", "mgr-1", managerRoles, leave.DecisionApprove, "")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestDecide_ConcurrentApproveVsReject_ExactlyOneWins(t *testing.T) {
	// GIVEN: One pending request and two managers deciding concurrently,
	//        one approving and one rejecting
	// THEN: Exactly one decision lands; the loser gets a conflict; the final
	//       balance reflects exactly one resolution, never both

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	decisions := []leave.Decision{leave.DecisionApprove, leave.DecisionReject}
	for i, d := range decisions {
		wg.Add(1)
		go func(i int, d leave.Decision) {
			defer wg.Done()
			_, errs[i] = e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, d, "")
		}(i, d)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, leave.ErrConflict)
		}
	}
	require.Equal(t, 1, succeeded)

	final, err := e.mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	switch final.Status {
	case leave.StatusApproved:
		assertBalance(t, b, 12, 5, 0)
	case leave.StatusRejected:
		assertBalance(t, b, 12, 0, 0)
	default:
		t.Fatalf("request ended in unexpected status %s", final.Status)
	}
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestCancel_PendingBySubmitterReleasesReservation(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	cancelled, err := e.coordinator.Cancel(context.Background(), req.ID, "emp-1", []leave.Role{leave.RoleEmployee})
	require.NoError(t, err)

	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 12, 0, 0)
}

func TestCancel_PendingByStrangerRejected(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	_, err := e.coordinator.Cancel(context.Background(), req.ID, "emp-2", []leave.Role{leave.RoleEmployee})
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}

func TestCancel_ApprovedRestoresUsed(t *testing.T) {
	// GIVEN: An approved 5-day request, balance {12, 5, 0}
	// WHEN: A manager cancels it
	// THEN: Status cancelled, balance {12, 0, 0}, remaining 12

	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")
	_, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.NoError(t, err)

	cancelled, err := e.coordinator.Cancel(context.Background(), req.ID, "mgr-1", managerRoles)
	require.NoError(t, err)

	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	assertBalance(t, b, 12, 0, 0)
	assert.True(t, b.Remaining().Equal(decimal.NewFromInt(12)))
}

func TestCancel_ApprovedBySubmitterWithoutRoleRejected(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")
	_, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.NoError(t, err)

	_, err = e.coordinator.Cancel(context.Background(), req.ID, "emp-1", []leave.Role{leave.RoleEmployee})
	assert.ErrorIs(t, err, leave.ErrUnauthorized)
}

func TestCancel_TerminalStatesRejected(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")
	_, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionReject, "")
	require.NoError(t, err)

	_, err = e.coordinator.Cancel(context.Background(), req.ID, "mgr-1", managerRoles)
	assert.ErrorIs(t, err, leave.ErrConflict)
}

// =============================================================================
// SETTLEMENT FAILURE RECOVERY
// =============================================================================

// contentiousBalances simulates a balance row under permanent write
// contention: every UpdateBalance loses its version check while the flag
// is set, which exhausts the ledger's bounded retries.
type contentiousBalances struct {
	*store.Memory
	failWrites bool
}

func (c *contentiousBalances) UpdateBalance(ctx context.Context, b leave.Balance, expectedVersion int64) error {
	if c.failWrites {
		return leave.ErrConcurrentModification
	}
	return c.Memory.UpdateBalance(ctx, b, expectedVersion)
}

func newContentiousEngine(t *testing.T) (*engine, *contentiousBalances) {
	t.Helper()
	mem := store.NewMemory()
	flaky := &contentiousBalances{Memory: mem}
	ledger := leave.NewLedger(flaky, nil)
	clock := func() time.Time { return fixedNow }
	e := &engine{
		mem:         mem,
		ledger:      ledger,
		coordinator: leave.NewCoordinator(ledger, mem, nil, nil).WithClock(clock),
		processor:   leave.NewProcessor(ledger, mem, nil, nil).WithClock(clock),
	}
	return e, flaky
}

func TestDecide_SettlementFailureRevertsStatus(t *testing.T) {
	// GIVEN: A pending 5-day request whose balance row is under contention
	// WHEN: The approval's ledger settlement exhausts its write retries
	// THEN: The status write is reverted to pending with its metadata
	//       cleared; the reservation stays held, never stranded in a
	//       decided-but-unsettled request; retrying the decision succeeds

	e, flaky := newContentiousEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	flaky.failWrites = true
	_, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConflict)

	after, err := e.mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, after.Status)
	assert.Nil(t, after.DecidedBy)
	assert.Nil(t, after.DecidedAt)

	b := e.balance(t, "emp-1", leave.CategoryAnnual)
	assertBalance(t, b, 12, 0, 5)

	// Contention clears; the decision can be retried and settles fully.
	flaky.failWrites = false
	decided, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, decided.Status)
	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 12, 5, 0)
}

func TestCancel_SettlementFailureRevertsStatus(t *testing.T) {
	// GIVEN: An approved request whose balance row is under contention
	// WHEN: The cancellation's restoration exhausts its write retries
	// THEN: The request stays approved and used stays committed; the
	//       cancellation can be retried once contention clears

	e, flaky := newContentiousEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")
	_, err := e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.NoError(t, err)

	flaky.failWrites = true
	_, err = e.coordinator.Cancel(context.Background(), req.ID, "mgr-1", managerRoles)
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConflict)

	after, err := e.mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, after.Status)
	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 12, 5, 0)

	flaky.failWrites = false
	cancelled, err := e.coordinator.Cancel(context.Background(), req.ID, "mgr-1", managerRoles)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	assertBalance(t, e.balance(t, "emp-1", leave.CategoryAnnual), 12, 0, 0)
}

func TestCancel_DurationFrozenAtSubmission(t *testing.T) {
	// The stored duration drives the restoration, not a recomputation.
	e := newEngine(t)
	e.seed(t, "emp-1", leave.CategoryAnnual, 12)
	req := submitWeek(t, e, "emp-1")

	stored, err := e.mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, stored.Duration.Equal(req.Duration))

	_, err = e.processor.Decide(context.Background(), req.ID, "mgr-1", managerRoles, leave.DecisionApprove, "")
	require.NoError(t, err)

	after, err := e.mem.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.True(t, after.Duration.Equal(req.Duration))
}

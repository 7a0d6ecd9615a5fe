/*
reader_test.go - Pay-period deduction tests

Covers the two proration paths: fully-contained requests contribute their
frozen duration, boundary-straddling requests contribute only the clipped
business days.
*/
package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
	"github.com/warp/leave-engine/payroll"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedRequest(t *testing.T, mem *store.Memory, id string, status leave.Status, start, end time.Time, duration int64) {
	t.Helper()
	err := mem.CreateRequest(context.Background(), leave.Request{
		ID:         id,
		EmployeeID: "emp-1",
		Category:   leave.CategoryAnnual,
		StartDate:  start,
		EndDate:    end,
		Duration:   decimal.NewFromInt(duration),
		Reason:     "trip",
		Status:     status,
		AppliedAt:  date(2026, time.February, 1),
	})
	require.NoError(t, err)
}

func TestDeductions_FullyContainedUsesFrozenDuration(t *testing.T) {
	// GIVEN: An approved Mon-Fri request inside March
	// WHEN: Reading March deductions
	// THEN: The stored duration is used as-is

	mem := store.NewMemory()
	seedRequest(t, mem, "req-1", leave.StatusApproved,
		date(2026, time.March, 2), date(2026, time.March, 6), 5)

	reader := payroll.NewReader(mem)
	deductions, total, err := reader.Deductions(context.Background(), "emp-1", payroll.Monthly(2026, time.March))
	require.NoError(t, err)

	require.Len(t, deductions, 1)
	assert.Equal(t, "req-1", deductions[0].Request.ID)
	assert.True(t, deductions[0].Days.Equal(decimal.NewFromInt(5)))
	assert.True(t, total.Equal(decimal.NewFromInt(5)))
}

func TestDeductions_StraddlingIsProrated(t *testing.T) {
	// GIVEN: An approved request from Mon Mar 30 to Fri Apr 3 (5 business days)
	// WHEN: Reading March deductions
	// THEN: Only Mar 30-31 (2 business days) count toward March

	mem := store.NewMemory()
	seedRequest(t, mem, "req-1", leave.StatusApproved,
		date(2026, time.March, 30), date(2026, time.April, 3), 5)

	reader := payroll.NewReader(mem)

	_, marchTotal, err := reader.Deductions(context.Background(), "emp-1", payroll.Monthly(2026, time.March))
	require.NoError(t, err)
	assert.True(t, marchTotal.Equal(decimal.NewFromInt(2)), "march: got %s", marchTotal)

	_, aprilTotal, err := reader.Deductions(context.Background(), "emp-1", payroll.Monthly(2026, time.April))
	require.NoError(t, err)
	assert.True(t, aprilTotal.Equal(decimal.NewFromInt(3)), "april: got %s", aprilTotal)
}

func TestDeductions_IgnoresUndecidedAndCancelled(t *testing.T) {
	// Only approved requests reach payroll.
	mem := store.NewMemory()
	seedRequest(t, mem, "req-pending", leave.StatusPending,
		date(2026, time.March, 2), date(2026, time.March, 3), 2)
	seedRequest(t, mem, "req-cancelled", leave.StatusCancelled,
		date(2026, time.March, 9), date(2026, time.March, 10), 2)
	seedRequest(t, mem, "req-approved", leave.StatusApproved,
		date(2026, time.March, 16), date(2026, time.March, 17), 2)

	reader := payroll.NewReader(mem)
	deductions, total, err := reader.Deductions(context.Background(), "emp-1", payroll.Monthly(2026, time.March))
	require.NoError(t, err)

	require.Len(t, deductions, 1)
	assert.Equal(t, "req-approved", deductions[0].Request.ID)
	assert.True(t, total.Equal(decimal.NewFromInt(2)))
}

func TestDeductions_EmptyPeriod(t *testing.T) {
	mem := store.NewMemory()
	reader := payroll.NewReader(mem)

	deductions, total, err := reader.Deductions(context.Background(), "emp-1", payroll.Monthly(2026, time.July))
	require.NoError(t, err)
	assert.Empty(t, deductions)
	assert.True(t, total.IsZero())
}

func TestMonthlyPeriod(t *testing.T) {
	p := payroll.Monthly(2026, time.February)
	assert.Equal(t, date(2026, time.February, 1), p.Start)
	assert.Equal(t, date(2026, time.February, 28), p.End)

	next := p.Next()
	assert.Equal(t, date(2026, time.March, 1), next.Start)
	assert.Equal(t, date(2026, time.March, 31), next.End)

	assert.True(t, p.Contains(date(2026, time.February, 15)))
	assert.False(t, p.Contains(date(2026, time.March, 1)))
	assert.True(t, p.Overlaps(date(2026, time.January, 20), date(2026, time.February, 2)))
	assert.False(t, p.Overlaps(date(2026, time.March, 1), date(2026, time.March, 5)))
}

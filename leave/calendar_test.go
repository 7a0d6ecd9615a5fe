/*
calendar_test.go - Business-day duration tests

CORE RULES UNDER TEST:
- Weekends are never chargeable
- Half-day halves a single-day count and rejects multi-day ranges
- Ranges with zero business days are rejected before any reservation
*/
package leave_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestBusinessDays_FullWeek(t *testing.T) {
	// GIVEN: Monday through Friday (2026-03-02 .. 2026-03-06)
	// WHEN: Computing the duration
	// THEN: 5 business days

	d, err := leave.BusinessDays(date(2026, time.March, 2), date(2026, time.March, 6), false)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimalFromInt(5)), "expected 5, got %s", d)
}

func TestBusinessDays_SpanningWeekend(t *testing.T) {
	// GIVEN: Friday through Monday (2026-03-06 .. 2026-03-09)
	// WHEN: Computing the duration
	// THEN: Saturday and Sunday are skipped, 2 business days

	d, err := leave.BusinessDays(date(2026, time.March, 6), date(2026, time.March, 9), false)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimalFromInt(2)), "expected 2, got %s", d)
}

func TestBusinessDays_SingleDay(t *testing.T) {
	d, err := leave.BusinessDays(date(2026, time.March, 4), date(2026, time.March, 4), false)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimalFromInt(1)))
}

func TestBusinessDays_HalfDay(t *testing.T) {
	// GIVEN: A single weekday with the half-day flag
	// THEN: Duration is 0.5

	d, err := leave.BusinessDays(date(2026, time.March, 4), date(2026, time.March, 4), true)
	require.NoError(t, err)
	assert.Equal(t, "0.5", d.String())
}

func TestBusinessDays_HalfDayMultiDayRejected(t *testing.T) {
	_, err := leave.BusinessDays(date(2026, time.March, 2), date(2026, time.March, 3), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestBusinessDays_WeekendOnlyRejected(t *testing.T) {
	// GIVEN: Saturday through Sunday (2026-03-07 .. 2026-03-08)
	// THEN: Zero business days is a validation error, not a zero-duration request

	_, err := leave.BusinessDays(date(2026, time.March, 7), date(2026, time.March, 8), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestBusinessDays_EndBeforeStartRejected(t *testing.T) {
	_, err := leave.BusinessDays(date(2026, time.March, 6), date(2026, time.March, 2), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestBusinessDays_IgnoresTimeOfDay(t *testing.T) {
	// GIVEN: Timestamps with non-midnight clock components
	// THEN: The calculation is day-granular

	start := time.Date(2026, time.March, 2, 18, 30, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 6, 4, 0, 0, 0, time.UTC)
	d, err := leave.BusinessDays(start, end, false)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimalFromInt(5)))
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, leave.IsWeekend(date(2026, time.March, 7)))  // Saturday
	assert.True(t, leave.IsWeekend(date(2026, time.March, 8)))  // Sunday
	assert.False(t, leave.IsWeekend(date(2026, time.March, 9))) // Monday
}

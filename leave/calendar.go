/*
calendar.go - Business-day duration calculator

PURPOSE:
  The single place where chargeable duration is computed. Centralizing this
  removes the risk of divergent weekend/half-day rules between submission-time
  validation and later recomputation.

RULES:
  - Iterate calendar days from start to end inclusive
  - Saturdays and Sundays are never chargeable
  - halfDay halves the count and is only valid for single-day ranges
  - end before start, multi-day half-day, and zero-business-day ranges
    are all rejected as ValidationError

The calculator is pure and holds no state; it is safe to call concurrently.
Holiday calendars are out of scope here.
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// BusinessDays computes the chargeable duration of [start, end] in business
// days. Returns a strictly positive decimal or a ValidationError.
func BusinessDays(start, end time.Time, halfDay bool) (decimal.Decimal, error) {
	start = DateOf(start)
	end = DateOf(end)

	if end.Before(start) {
		return decimal.Zero, &ValidationError{Field: "end_date", Message: "end date before start date"}
	}
	if halfDay && !start.Equal(end) {
		return decimal.Zero, &ValidationError{Field: "half_day", Message: "half-day requests must cover a single day"}
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) {
			continue
		}
		count++
	}
	if count == 0 {
		return decimal.Zero, &ValidationError{Field: "start_date", Message: "zero-duration request: range contains no business days"}
	}

	duration := decimal.NewFromInt(int64(count))
	if halfDay {
		duration = duration.Div(two)
	}
	return duration, nil
}

// DateOf truncates t to midnight UTC. All ledger dates are day-granular.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

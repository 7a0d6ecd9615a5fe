package payroll

import "time"

// =============================================================================
// PAY PERIOD - The time boundary for deduction calculation
// =============================================================================

// Period is a closed date range [Start, End]. Deductions are ALWAYS computed
// for a period, not at a point in time.
type Period struct {
	Start time.Time
	End   time.Time
}

// Monthly returns the calendar-month pay period containing year/month.
func Monthly(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, -1),
	}
}

// Contains reports whether t is within the period [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Overlaps reports whether [from, to] intersects the period.
func (p Period) Overlaps(from, to time.Time) bool {
	return !to.Before(p.Start) && !from.After(p.End)
}

// Next returns the following calendar-month period.
func (p Period) Next() Period {
	start := p.End.AddDate(0, 0, 1)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

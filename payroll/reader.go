/*
Package payroll reads decided leave to compute pay-period deductions.

The reader is a consumer of the leave core, never a writer: it queries
approved requests overlapping a pay period and sums their durations. The
ledger and request history are treated as read-only.

PRORATION:
  A request fully inside the period contributes its frozen duration (the
  stored value is authoritative and is never recomputed). A request that
  straddles a period boundary contributes only the business days of the
  overlapping portion; the stored request itself is untouched.
*/
package payroll

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Deduction is one approved request's contribution to a pay period.
type Deduction struct {
	Request leave.Request
	Days    decimal.Decimal
}

// Reader computes leave deductions for payroll.
type Reader struct {
	requests leave.RequestStore
}

func NewReader(requests leave.RequestStore) *Reader {
	return &Reader{requests: requests}
}

// Deductions returns the per-request deductions and their total for one
// employee in a pay period. A store failure surfaces as an error, never as
// an empty result.
func (r *Reader) Deductions(ctx context.Context, employeeID string, p Period) ([]Deduction, decimal.Decimal, error) {
	approved, err := r.requests.ListApprovedInRange(ctx, employeeID, p.Start, p.End)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var out []Deduction
	total := decimal.Zero
	for _, req := range approved {
		days := deductionDays(req, p)
		if days.IsZero() {
			continue
		}
		out = append(out, Deduction{Request: req, Days: days})
		total = total.Add(days)
	}
	return out, total, nil
}

func deductionDays(req leave.Request, p Period) decimal.Decimal {
	if p.Contains(req.StartDate) && p.Contains(req.EndDate) {
		return req.Duration
	}

	// Straddles the boundary: count business days of the clipped range.
	// Half-day requests are single-day and always fully contained.
	from := req.StartDate
	if from.Before(p.Start) {
		from = p.Start
	}
	to := req.EndDate
	if to.After(p.End) {
		to = p.End
	}

	count := int64(0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !leave.IsWeekend(d) {
			count++
		}
	}
	return decimal.NewFromInt(count)
}

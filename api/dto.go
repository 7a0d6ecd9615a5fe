/*
dto.go - Data Transfer Objects for API requests and responses

These types decouple the internal domain model from the external JSON
contract. Amounts are serialized as JSON numbers computed from decimals at
the edge; the domain never uses floats internally.
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SubmitRequestDTO is the body for submitting a leave request.
type SubmitRequestDTO struct {
	Category  string `json:"category"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
	HalfDay   bool   `json:"half_day"`
	Reason    string `json:"reason"`
}

// DecideRequestDTO is the body for approving or rejecting a request. The
// endpoint determines the decision; Decision is optional and rejected when
// it contradicts the route.
type DecideRequestDTO struct {
	Decision string `json:"decision,omitempty"` // "approve" | "reject"
	Note     string `json:"note,omitempty"`
}

// ResetAllocationDTO is the body for the policy-period allocation reset.
type ResetAllocationDTO struct {
	EmployeeID string  `json:"employee_id"`
	Category   string  `json:"category"`
	Allocated  float64 `json:"allocated"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	Category     string  `json:"category"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	HalfDay      bool    `json:"half_day"`
	Duration     float64 `json:"duration"`
	Reason       string  `json:"reason"`
	Status       string  `json:"status"`
	AppliedAt    string  `json:"applied_at"`
	DecidedBy    *string `json:"decided_by,omitempty"`
	DecidedAt    *string `json:"decided_at,omitempty"`
	DecisionNote *string `json:"decision_note,omitempty"`
}

// CategoryBalanceDTO is one category's balance breakdown.
type CategoryBalanceDTO struct {
	Allocated float64 `json:"allocated"`
	Used      float64 `json:"used"`
	Pending   float64 `json:"pending"`
	Remaining float64 `json:"remaining"`
}

// BalanceDTO maps category -> balance for one employee.
type BalanceDTO struct {
	EmployeeID string                        `json:"employee_id"`
	Balances   map[string]CategoryBalanceDTO `json:"balances"`
}

// DeductionDTO is one approved request's payroll contribution.
type DeductionDTO struct {
	RequestID string  `json:"request_id"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Days      float64 `json:"days"`
}

// DeductionsDTO is the payroll view for one employee and pay period.
type DeductionsDTO struct {
	EmployeeID  string         `json:"employee_id"`
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	TotalDays   float64        `json:"total_days"`
	Deductions  []DeductionDTO `json:"deductions"`
}

// SeedDTO bootstraps balances for local development.
type SeedDTO struct {
	EmployeeIDs []string           `json:"employee_ids"`
	Allocations map[string]float64 `json:"allocations"` // category -> days
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRequestDTO(r leave.Request) RequestDTO {
	duration, _ := r.Duration.Float64()
	dto := RequestDTO{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		Category:     string(r.Category),
		StartDate:    r.StartDate.Format("2006-01-02"),
		EndDate:      r.EndDate.Format("2006-01-02"),
		HalfDay:      r.HalfDay,
		Duration:     duration,
		Reason:       r.Reason,
		Status:       string(r.Status),
		AppliedAt:    r.AppliedAt.Format(time.RFC3339),
		DecidedBy:    r.DecidedBy,
		DecisionNote: r.DecisionNote,
	}
	if r.DecidedAt != nil {
		s := r.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

func toRequestDTOs(reqs []leave.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toBalanceDTO(employeeID string, balances map[leave.Category]leave.Balance) BalanceDTO {
	out := BalanceDTO{EmployeeID: employeeID, Balances: make(map[string]CategoryBalanceDTO, len(balances))}
	for category, b := range balances {
		allocated, _ := b.Allocated.Float64()
		used, _ := b.Used.Float64()
		pending, _ := b.Pending.Float64()
		remaining, _ := b.Remaining().Float64()
		out.Balances[string(category)] = CategoryBalanceDTO{
			Allocated: allocated,
			Used:      used,
			Pending:   pending,
			Remaining: remaining,
		}
	}
	return out
}

/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave core via REST. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    POST /api/employees/{id}/requests   Submit a leave request
    GET  /api/employees/{id}/requests   Request history
    GET  /api/employees/{id}/balance    Balance per category

  Requests:
    GET  /api/requests/pending          Approval queue
    POST /api/requests/{id}/approve     Approve (manager/HR)
    POST /api/requests/{id}/reject      Reject (manager/HR)
    POST /api/requests/{id}/cancel      Cancel (submitter or manager/HR)

  Admin:
    PUT  /api/admin/allocations         Policy-period allocation reset (HR)
    POST /api/admin/seed                Dev bootstrap of balances (HR)

  Payroll:
    GET  /api/payroll/deductions        Deductions for a pay period

ERROR HANDLING:
  Domain errors map to HTTP status by taxonomy:
  - 400 validation_error
  - 403 unauthorized
  - 404 not_found
  - 409 insufficient_balance / conflict
  No error is swallowed or replaced with a default value.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/payroll"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Coordinator *leave.Coordinator
	Processor   *leave.Processor
	Ledger      *leave.Ledger
	Requests    leave.RequestStore
	Payroll     *payroll.Reader
	Logger      *zap.Logger
}

func NewHandler(coordinator *leave.Coordinator, processor *leave.Processor, ledger *leave.Ledger, requests leave.RequestStore, reader *payroll.Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Coordinator: coordinator,
		Processor:   processor,
		Ledger:      ledger,
		Requests:    requests,
		Payroll:     reader,
		Logger:      logger.Named("api"),
	}
}

// =============================================================================
// SUBMISSION AND HISTORY
// =============================================================================

// SubmitRequest creates a new pending leave request for the employee.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}
	// Employees submit for themselves; managers/HR may submit on behalf.
	if principal.EmployeeID != employeeID && !leave.HasApproverRole(principal.Roles) {
		writeError(w, http.StatusForbidden, "unauthorized", "cannot submit for another employee", nil)
		return
	}

	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid start_date format (use YYYY-MM-DD)", nil)
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid end_date format (use YYYY-MM-DD)", nil)
		return
	}

	created, err := h.Coordinator.Submit(r.Context(), employeeID, leave.Category(req.Category), startDate, endDate, req.HalfDay, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListEmployeeRequests returns the request history, newest first.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	reqs, err := h.Requests.ListByEmployee(r.Context(), employeeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetBalance returns the per-category balance map for an employee.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	balances, err := h.Ledger.GetBalance(r.Context(), employeeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(employeeID, balances))
}

// =============================================================================
// DECISIONS AND CANCELLATION
// =============================================================================

// ListPendingRequests returns the approval queue, oldest first.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Requests.ListByStatus(r.Context(), leave.StatusPending)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// ApproveRequest applies an approve decision.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionApprove)
}

// RejectRequest applies a reject decision.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision leave.Decision) {
	requestID := chi.URLParam(r, "id")
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	var body DecideRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
			return
		}
	}
	// The route determines the decision; a contradicting body value is a
	// caller bug, not something to silently ignore.
	if body.Decision != "" && body.Decision != string(decision) {
		writeError(w, http.StatusBadRequest, "validation_error", "decision in body does not match endpoint", nil)
		return
	}

	decided, err := h.Processor.Decide(r.Context(), requestID, principal.EmployeeID, principal.Roles, decision, body.Note)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(decided))
}

// CancelRequest cancels a pending or approved request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return
	}

	cancelled, err := h.Coordinator.Cancel(r.Context(), requestID, principal.EmployeeID, principal.Roles)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(cancelled))
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetAllocation applies a policy-period allocation for one
// (employee, category). Existing used/pending are preserved.
func (h *Handler) ResetAllocation(w http.ResponseWriter, r *http.Request) {
	if !h.requireHR(w, r) {
		return
	}

	var body ResetAllocationDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return
	}

	err := h.Ledger.ResetAllocation(r.Context(), body.EmployeeID, leave.Category(body.Category), decimal.NewFromFloat(body.Allocated))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Seed bootstraps balances for local development.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	if !h.requireHR(w, r) {
		return
	}

	var body SeedDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return
	}

	for _, employeeID := range body.EmployeeIDs {
		for category, days := range body.Allocations {
			err := h.Ledger.ResetAllocation(r.Context(), employeeID, leave.Category(category), decimal.NewFromFloat(days))
			if err != nil {
				h.writeDomainError(w, err)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireHR(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return false
	}
	for _, role := range principal.Roles {
		if role == leave.RoleHR {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "unauthorized", "hr role required", nil)
	return false
}

// =============================================================================
// PAYROLL
// =============================================================================

// Deductions returns the leave deductions for one employee and pay period.
// Query: employee_id, year, month.
func (h *Handler) Deductions(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "employee_id is required", nil)
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "year must be an integer", nil)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "validation_error", "month must be 1-12", nil)
		return
	}

	period := payroll.Monthly(year, time.Month(month))
	deductions, total, err := h.Payroll.Deductions(r.Context(), employeeID, period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	totalDays, _ := total.Float64()
	dto := DeductionsDTO{
		EmployeeID:  employeeID,
		PeriodStart: period.Start.Format("2006-01-02"),
		PeriodEnd:   period.End.Format("2006-01-02"),
		TotalDays:   totalDays,
		Deductions:  make([]DeductionDTO, len(deductions)),
	}
	for i, d := range deductions {
		days, _ := d.Days.Float64()
		dto.Deductions[i] = DeductionDTO{
			RequestID: d.Request.ID,
			StartDate: d.Request.StartDate.Format("2006-01-02"),
			EndDate:   d.Request.EndDate.Format("2006-01-02"),
			Days:      days,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// Health is the unauthenticated liveness check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leave.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, leave.ErrInsufficientBalance):
		var ib *leave.InsufficientBalanceError
		var details any
		if errors.As(err, &ib) {
			remaining, _ := ib.Remaining.Float64()
			requested, _ := ib.Requested.Float64()
			details = map[string]float64{"remaining": remaining, "requested": requested}
		}
		writeError(w, http.StatusConflict, "insufficient_balance", err.Error(), details)
	case errors.Is(err, leave.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, leave.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error(), nil)
	case errors.Is(err, leave.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		h.Logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

func parseDate(v string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", v, time.UTC)
}

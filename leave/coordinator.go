/*
coordinator.go - Reservation coordinator (submission and cancellation)

PURPOSE:
  The coordinator is the only component that converts a validated request
  into a balance reservation and back. Submission is a two-phase sequence:

    1. validate dates, compute the frozen business-day duration
    2. TryReserve against the ledger
    3. persist the request in pending

  If step 3 fails after a successful reserve, the reservation is released on
  the failure path so no orphaned hold survives.

CANCELLATION:
  Cancel is just another state transition, not a cooperative-cancellation
  signal. A pending request may be cancelled by its submitter (reservation
  released); an approved request may be cancelled by a manager/HR actor, in
  which case the committed amount is restored from used.
*/
package leave

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Coordinator orchestrates ledger and request store as a single logical unit.
type Coordinator struct {
	ledger   *Ledger
	requests RequestStore
	notifier Notifier
	logger   *zap.Logger

	// now is injectable for tests; submissions in the past are rejected
	// relative to it.
	now func() time.Time
}

func NewCoordinator(ledger *Ledger, requests RequestStore, notifier Notifier, logger *zap.Logger) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		ledger:   ledger,
		requests: requests,
		notifier: notifier,
		logger:   logger.Named("leave.coordinator"),
		now:      time.Now,
	}
}

// WithClock overrides the coordinator's notion of "today". Test hook.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates, reserves balance, and records a new pending request.
// On reservation failure no request record is created.
func (c *Coordinator) Submit(ctx context.Context, employeeID string, category Category, startDate, endDate time.Time, halfDay bool, reason string) (Request, error) {
	if employeeID == "" {
		return Request{}, &ValidationError{Field: "employee_id", Message: "employee id required"}
	}
	if !category.Valid() {
		return Request{}, &ValidationError{Field: "category", Message: "unknown leave category"}
	}
	if reason == "" {
		return Request{}, &ValidationError{Field: "reason", Message: "reason required"}
	}

	startDate = DateOf(startDate)
	endDate = DateOf(endDate)

	// Applies only at submission time, never retroactively to history.
	if startDate.Before(DateOf(c.now())) {
		return Request{}, &ValidationError{Field: "start_date", Message: "start date is in the past"}
	}

	duration, err := BusinessDays(startDate, endDate, halfDay)
	if err != nil {
		return Request{}, err
	}

	if err := c.ledger.TryReserve(ctx, employeeID, category, duration); err != nil {
		return Request{}, err
	}

	req := Request{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Category:   category,
		StartDate:  startDate,
		EndDate:    endDate,
		HalfDay:    halfDay,
		Duration:   duration,
		Reason:     reason,
		Status:     StatusPending,
		AppliedAt:  c.now().UTC(),
	}

	if err := c.requests.CreateRequest(ctx, req); err != nil {
		// Reserve succeeded but the record did not: release the hold so
		// the reservation does not leak.
		if relErr := c.ledger.ResolveReservation(ctx, employeeID, category, duration, OutcomeRelease); relErr != nil {
			c.logger.Error("failed to release orphaned reservation",
				zap.String("employee_id", employeeID),
				zap.String("category", string(category)),
				zap.Error(relErr),
			)
		}
		return Request{}, err
	}

	c.logger.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("employee_id", employeeID),
		zap.String("category", string(category)),
		zap.String("duration", duration.String()),
	)
	c.notifier.Publish(ctx, Event{
		Type:       EventRequestSubmitted,
		RequestID:  req.ID,
		EmployeeID: employeeID,
		Category:   category,
		Status:     StatusPending,
		Duration:   duration,
		ActorID:    employeeID,
		At:         req.AppliedAt,
	})
	return req, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel transitions a request to cancelled and settles its reservation.
// Pending requests may be cancelled by their submitter; approved requests
// require manager/HR capability and restore the committed amount.
func (c *Coordinator) Cancel(ctx context.Context, requestID, actorID string, roles []Role) (Request, error) {
	req, err := c.requests.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}

	if err := CheckTransition(req.ID, req.Status, StatusCancelled); err != nil {
		return Request{}, err
	}

	switch req.Status {
	case StatusPending:
		if actorID != req.EmployeeID && !HasApproverRole(roles) {
			return Request{}, &UnauthorizedError{ActorID: actorID, Reason: "only the submitter may cancel a pending request"}
		}
	case StatusApproved:
		if !HasApproverRole(roles) {
			return Request{}, &UnauthorizedError{ActorID: actorID, Reason: "cancelling an approved request requires manager or hr role"}
		}
	}

	wasApproved := req.Status == StatusApproved
	previous := req.Status

	updated := req
	updated.Status = StatusCancelled
	if err := c.requests.UpdateRequest(ctx, updated, previous); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return Request{}, &ConflictError{RequestID: req.ID, Message: "request already decided"}
		}
		return Request{}, err
	}

	// Settle the balance side. The status CAS above guarantees exactly one
	// winner reaches this point for a given request.
	if wasApproved {
		err = c.ledger.RestoreUsed(ctx, req.EmployeeID, req.Category, req.Duration)
	} else {
		err = c.ledger.ResolveReservation(ctx, req.EmployeeID, req.Category, req.Duration, OutcomeRelease)
	}
	if err != nil {
		// Revert the status write so the request is not left cancelled with
		// its reservation (or committed amount) still on the books.
		if revErr := c.requests.UpdateRequest(ctx, req, StatusCancelled); revErr != nil {
			c.logger.Error("cancellation settled status but not balance, revert failed",
				zap.String("request_id", req.ID),
				zap.Error(revErr),
			)
			return Request{}, err
		}
		c.logger.Warn("cancellation reverted: balance settlement failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return Request{}, err
	}

	c.logger.Info("request cancelled",
		zap.String("request_id", req.ID),
		zap.String("actor_id", actorID),
		zap.String("previous_status", string(previous)),
	)
	c.notifier.Publish(ctx, Event{
		Type:       EventRequestCancelled,
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		Category:   req.Category,
		Status:     StatusCancelled,
		Duration:   req.Duration,
		ActorID:    actorID,
		At:         c.now().UTC(),
	})
	return updated, nil
}

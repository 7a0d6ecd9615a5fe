/*
approval.go - Approval processor

PURPOSE:
  Applies an approve/reject decision made by an authorized actor. The decider
  must hold manager or HR capability and must not be the submitter. Decision
  metadata (decided_by/decided_at/note) is written in the same status-guarded
  update as the transition, so a request is never observed approved or
  rejected without it.

CONCURRENCY:
  Two concurrent decisions for the same pending request race on the status
  CAS in the request store. Exactly one wins; the loser observes
  ErrConcurrentModification and surfaces "request already decided" as a
  ConflictError. Only the winner goes on to resolve the reservation, which
  keeps ledger resolution idempotent per request. When the resolution itself
  fails, the status write is reverted so a request never stays decided with
  an unsettled balance.
*/
package leave

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Processor applies decisions to pending requests.
type Processor struct {
	ledger   *Ledger
	requests RequestStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewProcessor(ledger *Ledger, requests RequestStore, notifier Notifier, logger *zap.Logger) *Processor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		ledger:   ledger,
		requests: requests,
		notifier: notifier,
		logger:   logger.Named("leave.approval"),
		now:      time.Now,
	}
}

// WithClock overrides the processor clock. Test hook.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Decide applies an approve or reject decision to a pending request.
func (p *Processor) Decide(ctx context.Context, requestID, deciderID string, roles []Role, decision Decision, note string) (Request, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return Request{}, &ValidationError{Field: "decision", Message: "decision must be approve or reject"}
	}
	if !HasApproverRole(roles) {
		return Request{}, &UnauthorizedError{ActorID: deciderID, Reason: "deciding requires manager or hr role"}
	}

	req, err := p.requests.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if deciderID == req.EmployeeID {
		return Request{}, &UnauthorizedError{ActorID: deciderID, Reason: "self-approval is not permitted"}
	}

	target := StatusApproved
	outcome := OutcomeCommit
	if decision == DecisionReject {
		target = StatusRejected
		outcome = OutcomeRelease
	}
	if err := CheckTransition(req.ID, req.Status, target); err != nil {
		return Request{}, err
	}

	decidedAt := p.now().UTC()
	updated := req
	updated.Status = target
	updated.DecidedBy = &deciderID
	updated.DecidedAt = &decidedAt
	if note != "" {
		updated.DecisionNote = &note
	}

	if err := p.requests.UpdateRequest(ctx, updated, StatusPending); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return Request{}, &ConflictError{RequestID: req.ID, Message: "request already decided"}
		}
		return Request{}, err
	}

	if err := p.ledger.ResolveReservation(ctx, req.EmployeeID, req.Category, req.Duration, outcome); err != nil {
		// The status moved but the balance did not. Revert the status write
		// so the reservation is not stranded: the request returns to pending
		// with its metadata cleared and the decision can be retried.
		if revErr := p.requests.UpdateRequest(ctx, req, target); revErr != nil {
			p.logger.Error("decision settled status but not balance, revert failed",
				zap.String("request_id", req.ID),
				zap.String("outcome", string(outcome)),
				zap.Error(revErr),
			)
			return Request{}, err
		}
		p.logger.Warn("decision reverted: balance settlement failed",
			zap.String("request_id", req.ID),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return Request{}, err
	}

	p.logger.Info("request decided",
		zap.String("request_id", req.ID),
		zap.String("decider_id", deciderID),
		zap.String("status", string(target)),
	)
	p.notifier.Publish(ctx, Event{
		Type:       EventRequestDecided,
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		Category:   req.Category,
		Status:     target,
		Duration:   req.Duration,
		ActorID:    deciderID,
		At:         decidedAt,
	})
	return updated, nil
}

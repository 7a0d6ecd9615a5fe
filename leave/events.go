/*
events.go - Notification events emitted by the workflow

Events are fire-and-forget: sinks log delivery failures and never propagate
them, because notification delivery is not required for correctness.
*/
package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventRequestSubmitted EventType = "request_submitted"
	EventRequestDecided   EventType = "request_decided"
	EventRequestCancelled EventType = "request_cancelled"
)

// Event describes a workflow state change for external consumers.
type Event struct {
	Type       EventType       `json:"type"`
	RequestID  string          `json:"request_id"`
	EmployeeID string          `json:"employee_id"`
	Category   Category        `json:"category"`
	Status     Status          `json:"status"`
	Duration   decimal.Decimal `json:"duration"`
	ActorID    string          `json:"actor_id,omitempty"`
	At         time.Time       `json:"at"`
}

// Notifier receives workflow events. Implementations must not block the
// calling operation and must not return errors to it.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}

/*
Package notify delivers workflow events to external sinks.

Delivery is fire-and-forget: the workflow does not depend on it for
correctness, so sinks log failures and never return them to the caller.
*/
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// LogSink writes every event to the structured log. Always on; useful on
// its own in development and as a local audit trail alongside Kafka.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Publish(_ context.Context, ev leave.Event) {
	s.logger.Info("event",
		zap.String("type", string(ev.Type)),
		zap.String("request_id", ev.RequestID),
		zap.String("employee_id", ev.EmployeeID),
		zap.String("category", string(ev.Category)),
		zap.String("status", string(ev.Status)),
		zap.String("duration", ev.Duration.String()),
		zap.String("actor_id", ev.ActorID),
	)
}

// Multi fans an event out to several sinks.
type Multi []leave.Notifier

func (m Multi) Publish(ctx context.Context, ev leave.Event) {
	for _, sink := range m {
		sink.Publish(ctx, ev)
	}
}

/*
kafka.go - Kafka notification sink

Publishes workflow events to a Kafka topic keyed by employee id, so all
events for one employee land on the same partition in order. Writes run in
a goroutine with their own timeout; failures are logged, never propagated.
*/
package notify

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

const publishTimeout = 5 * time.Second

// KafkaSink publishes events to a Kafka topic.
type KafkaSink struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireOne,
		},
		logger: logger.Named("notify.kafka"),
	}
}

func (s *KafkaSink) Publish(_ context.Context, ev leave.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	// Detached from the request context: the HTTP call must not wait on
	// the broker, and its cancellation must not drop the event.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		msg := kafkago.Message{
			Key:   []byte(ev.EmployeeID),
			Value: payload,
			Headers: []kafkago.Header{
				{Key: "event_type", Value: []byte(ev.Type)},
			},
		}
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("type", string(ev.Type)),
				zap.String("request_id", ev.RequestID),
				zap.Error(err),
			)
		}
	}()
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

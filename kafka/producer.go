package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/models"
)

const (
	kindBusinessEvent = "business_event"
	kindSummaryReport = "summary_report"

	summaryKey = "summary"
)

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProducer publishes business events (keyed by user id) and summary
// reports (keyed "summary") to one topic.
type EventProducer struct {
	writer MessageWriter
	topic  string
}

// NewEventProducer writes asynchronously; delivery failures are logged by
// the writer's completion callback.
func NewEventProducer(brokers []string, topic string, logger *zap.Logger) *EventProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Failed to deliver Kafka messages",
					zap.String("topic", topic),
					zap.Int("count", len(messages)),
					zap.Error(err),
				)
			}
		},
	}
	return NewEventProducerWithWriter(writer, topic)
}

func NewEventProducerWithWriter(writer MessageWriter, topic string) *EventProducer {
	return &EventProducer{writer: writer, topic: topic}
}

func (p *EventProducer) EmitEvent(ctx context.Context, ev models.BusinessEvent) error {
	return p.send(ctx, ev.UserID, kindBusinessEvent, ev)
}

func (p *EventProducer) EmitReport(ctx context.Context, r models.SummaryReport) error {
	return p.send(ctx, summaryKey, kindSummaryReport, r)
}

func (p *EventProducer) send(ctx context.Context, key, kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", kind, p.topic, err)
	}
	return nil
}

func (p *EventProducer) Close() error {
	return p.writer.Close()
}

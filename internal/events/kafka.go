// Package events publishes fire-and-forget audit events to Kafka (spec.md
// §4.10). This is strictly additive: the job queue remains the only
// durable channel between components (spec.md §4.5), so a Publish
// failure here is logged and swallowed, never bubbled up to fail a job.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Producer wraps a kafka.Writer targeting the audit topic.
type Producer struct {
	w      *kafka.Writer
	tracer trace.Tracer
}

// NewProducer builds a Producer against brokers, publishing to topic
// (spec.md §6.1 KAFKA_AUDIT_TOPIC, default "broker.audit.v1").
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.Hash{}, // partition by order id to preserve per-order ordering
		}),
		tracer: otel.Tracer("sync-engine/events"),
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the audit event wire schema.
type Envelope struct {
	EventType    string `json:"eventType"`
	EventVersion string `json:"eventVersion"`
	OccurredAt   time.Time `json:"occurredAt"`
	AggregateID  string      `json:"aggregateId"` // orderId
	Data         interface{} `json:"data"`
}

// Publish writes evt keyed by key (typically the order id, to preserve
// per-order ordering within a partition).
func (p *Producer) Publish(ctx context.Context, key string, evt Envelope) error {
	evt.OccurredAt = time.Now().UTC()
	val, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	ctx, span := p.tracer.Start(ctx, "kafka.publish.audit")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination_kind", "topic"),
		attribute.String("messaging.message_id", evt.AggregateID),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", evt.EventType),
	)

	err = p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: val})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

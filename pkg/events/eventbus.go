package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/hookflow-go/pkg/config"
)

// Event types published by the webhook pipeline.
const (
	TypeWebhookReceived  = "webhook.received"
	TypeWebhookDispatch  = "webhook.dispatched"
	TypeDispatchFailed   = "webhook.dispatch_failed"
	TypeWebhookDuplicate = "webhook.duplicate"
)

type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	AggregateID string                 `json:"aggregateId"`
	Timestamp   time.Time              `json:"timestamp"`
	Payload     map[string]interface{} `json:"payload"`
}

// EventBus publishes pipeline events for downstream consumers (audit,
// analytics). Publishing is observability only; delivery semantics do not
// depend on it.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type KafkaEventBus struct {
	writer *kafka.Writer
}

func NewKafkaEventBus(cfg config.KafkaConfig) (*KafkaEventBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	})

	return &KafkaEventBus{writer: writer}, nil
}

func (k *KafkaEventBus) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaEventBus) Close() error {
	return k.writer.Close()
}

// NopEventBus discards all events. Used in tests and when Kafka is disabled.
type NopEventBus struct{}

func (NopEventBus) Publish(context.Context, Event) error { return nil }
func (NopEventBus) Close() error                         { return nil }

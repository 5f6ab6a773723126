package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"concord/internal/platform/kafka/producer"
)

// KafkaPublisher publishes audit events to a Kafka topic keyed by entity ID
// so per-entity history stays ordered within a partition.
type KafkaPublisher struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaPublisher wraps an existing producer.
func NewKafkaPublisher(p *producer.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// Emit serializes the event and hands it to the async producer.
func (k *KafkaPublisher) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return k.producer.ProduceAsync(&producer.Message{
		Topic: k.topic,
		Key:   []byte(event.Kind + ":" + event.EntityID),
		Value: value,
	})
}

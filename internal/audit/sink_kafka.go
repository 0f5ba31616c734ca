package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Sink mirrors persisted events to an external consumer.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// RecordProducer is the producer surface the sink needs.
type RecordProducer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaSink publishes governance events to a Kafka topic so downstream
// compliance consumers see the same stream the store persists. Records are
// keyed by tenant, keeping one tenant's events ordered within a partition.
type KafkaSink struct {
	producer RecordProducer
	topic    string
}

func NewKafkaSink(producer RecordProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(recordPayload(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Publish(ctx, s.topic, []byte(event.TenantID), value)
}

// recordValue is the wire form of an event. Field names are part of the
// topic contract; consumers decode by these keys.
type recordValue struct {
	Timestamp string `json:"timestamp"`
	TenantID  string `json:"tenant_id,omitempty"`
	Action    string `json:"action"`
	Subject   string `json:"subject,omitempty"`
	Dataset   string `json:"dataset,omitempty"`
	MaskedIP  string `json:"masked_ip,omitempty"`
	Country   string `json:"country,omitempty"`
	Count     int64  `json:"count,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func recordPayload(event Event) recordValue {
	return recordValue{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		TenantID:  event.TenantID,
		Action:    event.Action,
		Subject:   event.Subject,
		Dataset:   event.Dataset,
		MaskedIP:  event.MaskedIP,
		Country:   event.Country,
		Count:     event.Count,
		Detail:    event.Detail,
	}
}

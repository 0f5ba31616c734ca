// Package kafka wraps the franz-go producer used to mirror governance
// events onto the compliance topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"custodian/internal/platform/config"
)

const topicPartitions = 3

// Producer publishes records to Kafka.
type Producer struct {
	client *kgo.Client
}

// New creates a producer from the provided configuration.
// Returns nil if no brokers are configured.
func New(cfg config.KafkaConfig) (*Producer, error) {
	if cfg.Brokers == "" {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	if err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	return &Producer{client: client}, nil
}

// EnsureTopic creates the topic when it does not exist yet. Safe to call on
// every start.
func (p *Producer) EnsureTopic(ctx context.Context, topic string) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, topicPartitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Publish produces a single record and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Health checks broker reachability.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}

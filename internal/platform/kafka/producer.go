// Package kafka publishes audit outbox entries to a Kafka-compatible broker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "skillproof/pkg/platform/audit"
)

// Header keys attached to every record.
const (
	HeaderEventType   = "event_type"
	HeaderAggregateID = "aggregate_id"
)

// Producer publishes outbox entries to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the brokers. Records are acknowledged by all
// in-sync replicas before Publish returns.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, -1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish sends one entry synchronously. The entry ID is the record key.
func (p *Producer) Publish(ctx context.Context, entry audit.OutboxEntry) error {
	record := NewRecord(p.topic, entry)
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", entry.ID, err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}

// NewRecord maps an outbox entry to a Kafka record.
func NewRecord(topic string, entry audit.OutboxEntry) *kgo.Record {
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(entry.EventType)},
			{Key: HeaderAggregateID, Value: []byte(entry.AggregateID)},
		},
	}
}

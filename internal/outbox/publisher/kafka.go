package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"signature-service/internal/outbox/models"
	id "signature-service/pkg/domain"
)

// KafkaProducer is the subset of *kgo.Client the publisher uses.
type KafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces one record per event keyed by aggregate id, so
// events of one envelope stay ordered within a partition.
type KafkaPublisher struct {
	producer KafkaProducer
	topic    string
}

func NewKafka(producer KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []*models.Event) ([]Failure, error) {
	if err := checkBatch(events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	records := make([]*kgo.Record, 0, len(events))
	byRecord := make(map[*kgo.Record]id.OutboxEventID, len(events))
	for _, ev := range events {
		value, err := ev.Wire()
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		rec := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(ev.AggregateID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(ev.ID.String())},
				{Key: "event_type", Value: []byte(ev.EventType)},
			},
			Timestamp: ev.CreatedAt,
		}
		records = append(records, rec)
		byRecord[rec] = ev.ID
	}

	var failures []Failure
	for _, res := range p.producer.ProduceSync(ctx, records...) {
		if res.Err == nil {
			continue
		}
		eventID, ok := byRecord[res.Record]
		if !ok {
			continue
		}
		failures = append(failures, Failure{EventID: eventID, Reason: res.Err.Error()})
	}
	if len(failures) == len(events) && ctx.Err() != nil {
		return nil, fmt.Errorf("produce: %w", ctx.Err())
	}
	return failures, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

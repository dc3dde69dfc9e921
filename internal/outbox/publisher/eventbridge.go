package publisher

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"signature-service/internal/outbox/models"
)

// EventBridgeAPI is the subset of the EventBridge client the publisher uses.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgePublisher sends events with PutEvents, which caps a request at 10 entries.
type EventBridgePublisher struct {
	client  EventBridgeAPI
	busName string
	source  string
}

func NewEventBridge(client EventBridgeAPI, busName, source string) *EventBridgePublisher {
	return &EventBridgePublisher{client: client, busName: busName, source: source}
}

func (p *EventBridgePublisher) Publish(ctx context.Context, events []*models.Event) ([]Failure, error) {
	if err := checkBatch(events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, ev := range events {
		detail, err := ev.Wire()
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(ev.EventType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(ev.CreatedAt),
			Resources:    []string{},
		})
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("put events: %w", err)
	}
	if out.FailedEntryCount == 0 {
		return nil, nil
	}

	// Result entries line up with request entries by index.
	var failures []Failure
	for i, res := range out.Entries {
		if i >= len(events) {
			break
		}
		if res.ErrorCode == nil {
			continue
		}
		failures = append(failures, Failure{
			EventID: events[i].ID,
			Reason:  aws.ToString(res.ErrorCode) + ": " + aws.ToString(res.ErrorMessage),
		})
	}
	return failures, nil
}

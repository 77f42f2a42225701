// Package events publishes domain events to EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
)

// maxEntries is the PutEvents batch limit.
const maxEntries = 10

// DefaultSource is the event source when none is configured.
const DefaultSource = "savethespice.backend"

// PutEventsAPI is the EventBridge call the publisher needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends events to one event bus.
type Publisher struct {
	client   PutEventsAPI
	eventBus string
	source   string
	logger   *zap.Logger
}

// NewPublisher creates an EventBridge publisher.
func NewPublisher(client PutEventsAPI, eventBus, source string, logger *zap.Logger) *Publisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = DefaultSource
	}
	return &Publisher{client: client, eventBus: eventBus, source: source, logger: logger}
}

// Publish sends events in batches of ten and stops at the first failed batch.
func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) error {
	for start := 0; start < len(events); start += maxEntries {
		end := min(start+maxEntries, len(events))
		if err := p.publishBatch(ctx, events[start:end]); err != nil {
			return err
		}
	}
	if len(events) > 0 {
		p.logger.Debug("events published", zap.Int("count", len(events)), zap.String("event_bus", p.eventBus))
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, events []domain.Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, event := range events {
		detail, err := json.Marshal(event)
		if err != nil {
			return appErrors.Internal(appErrors.CodeEventPublishFailed, "failed to encode event").
				WithCause(err).
				Build()
		}
		resources := make([]string, len(event.EntityIDs))
		for i, id := range event.EntityIDs {
			resources[i] = event.UserID + "/" + strconv.Itoa(id)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBus),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.Type),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.OccurredAt),
			Resources:    resources,
		})
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return appErrors.Unavailable(appErrors.CodeEventPublishFailed, "event bus rejected the batch").
			WithCause(err).
			Build()
	}
	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("event entry failed",
					zap.String("event_type", events[i].Type),
					zap.String("code", aws.ToString(entry.ErrorCode)),
					zap.String("message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return appErrors.Unavailable(appErrors.CodeEventPublishFailed,
			fmt.Sprintf("%d events failed to publish", out.FailedEntryCount)).
			Build()
	}
	return nil
}

// LogBus logs events instead of sending them. It is used when no event bus is configured.
type LogBus struct {
	logger *zap.Logger
}

// NewLogBus creates a logging event bus.
func NewLogBus(logger *zap.Logger) *LogBus {
	return &LogBus{logger: logger}
}

// Publish logs each event at debug level.
func (b *LogBus) Publish(_ context.Context, events ...domain.Event) error {
	for _, e := range events {
		b.logger.Debug("event",
			zap.String("event_type", e.Type),
			zap.String("user_id", e.UserID),
			zap.Ints("entity_ids", e.EntityIDs),
		)
	}
	return nil
}

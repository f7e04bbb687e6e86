package broker

import (
	"context"
	"fmt"

	"catalog-sync/internal/models"
)

// EventPublisher publishes vendor sync lifecycle events, keyed by vendor
// so consumers observe each vendor's runs in order.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishRunStarted publishes SyncRunStarted
func (ep *EventPublisher) PublishRunStarted(ctx context.Context, event *models.SyncRunStartedEvent) error {
	return ep.producer.PublishEvent(ctx, vendorKey(event.Vendor), event)
}

// PublishRunFinished publishes SyncRunFinished
func (ep *EventPublisher) PublishRunFinished(ctx context.Context, event *models.SyncRunFinishedEvent) error {
	return ep.producer.PublishEvent(ctx, vendorKey(event.Vendor), event)
}

func vendorKey(vendor string) string {
	return fmt.Sprintf("vendor-%s", vendor)
}

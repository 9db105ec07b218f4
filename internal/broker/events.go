package broker

import (
	"context"
	"fmt"

	"registration-service/internal/models"
)

// EventPublisher publishes reconciliation outcome events for downstream
// consumers (notifications, accounting exports). Publishing is best-effort:
// callers log failures and carry on, the webhook response never depends on it.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPaymentSucceeded publishes PaymentSucceeded event
func (ep *EventPublisher) PublishPaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) error {
	key := fmt.Sprintf("payment-%s", event.PaymentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	key := fmt.Sprintf("payment-%s", event.PaymentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentCanceled publishes PaymentCanceled event
func (ep *EventPublisher) PublishPaymentCanceled(ctx context.Context, event *models.PaymentCanceledEvent) error {
	key := fmt.Sprintf("payment-%s", event.PaymentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentRefunded publishes PaymentRefunded event
func (ep *EventPublisher) PublishPaymentRefunded(ctx context.Context, event *models.PaymentRefundedEvent) error {
	key := fmt.Sprintf("payment-%s", event.PaymentID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishRegistrationMoved publishes RegistrationMoved event
func (ep *EventPublisher) PublishRegistrationMoved(ctx context.Context, event *models.RegistrationMovedEvent) error {
	key := fmt.Sprintf("transfer-%s", event.TransferCodeID)
	return ep.producer.PublishEvent(ctx, key, event)
}

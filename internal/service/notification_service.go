package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
)

// EventPublisher forwards events to an external channel.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) (int64, error)
}

// NotificationService delivers domain events to the log and, when configured,
// to the Redis channel.
type NotificationService struct {
	publisher EventPublisher
	logger    *zap.Logger
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(logger *zap.Logger, publisher EventPublisher) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{publisher: publisher, logger: logger}
}

// Deliver logs the event and forwards it to the publisher.
func (n *NotificationService) Deliver(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))

	if n.publisher == nil {
		return nil
	}
	receivers, err := n.publisher.Publish(ctx, event)
	if err != nil {
		n.logger.Warn("publish ticket event", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	n.logger.Debug("ticket event published", zap.String("event_id", event.ID), zap.Int64("receivers", receivers))
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/events"
	pktNats "docqa-be/pkg/nats"
	"docqa-be/pkg/rag/preparation"

	"github.com/google/uuid"
)

const notificationDurable = "docqa-notification-worker"

// ErrMalformedEvent marks results that can never be delivered.
var ErrMalformedEvent = errors.New("malformed event")

// NotificationDelivery pushes real-time updates. Implemented by the websocket hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, event string, data interface{})
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error
}

// NotificationService routes preparation outcomes to connected clients. With
// NATS configured events go through the bus so exactly one instance picks
// each up; the hub then fans out through redis.
type NotificationService struct {
	mu         sync.RWMutex
	publisher  EventPublisher
	subscriber EventSubscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(pub EventPublisher, sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		publisher:  pub,
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

func (s *NotificationService) viaBus() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publisher != nil && s.subscriber != nil
}

// Start begins listening to the event bus. If the subscription fails the
// service stops publishing to the bus and delivers directly.
func (s *NotificationService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscriber == nil {
		s.logger.Info("NotificationService", "No event bus configured, delivering directly", nil)
		return nil
	}
	if err := s.subscriber.Subscribe(ctx, pktNats.AllEvents, notificationDurable, s.handleEvent); err != nil {
		s.subscriber = nil
		return fmt.Errorf("failed to start notification subscriber: %w", err)
	}
	s.logger.Info("NotificationService", "Notification service started", map[string]interface{}{"subject": pktNats.AllEvents})
	return nil
}

// BuildPreparationEvent turns a finished preparation into its outbound event.
func BuildPreparationEvent(msg dto.PreparationFinishedMessage) (events.BaseEvent, error) {
	owner, err := uuid.Parse(msg.OwnerId)
	if err != nil {
		return events.BaseEvent{}, fmt.Errorf("%w: invalid owner id %q: %v", ErrMalformedEvent, msg.OwnerId, err)
	}
	if msg.State == preparation.StateFailed {
		return events.NewDocumentPreparationFailed(owner, msg.DocumentId, msg.Reason, msg.Error), nil
	}
	return events.NewDocumentReady(owner, msg.DocumentId, msg.Topic, msg.Generated), nil
}

// NotifyPreparation publishes the outcome. A bus failure falls back to direct
// delivery on this instance.
func (s *NotificationService) NotifyPreparation(ctx context.Context, msg dto.PreparationFinishedMessage) error {
	event, err := BuildPreparationEvent(msg)
	if err != nil {
		return err
	}

	if s.viaBus() {
		err := s.publisher.Publish(ctx, event)
		if err == nil {
			return nil
		}
		s.logger.Warn("NotificationService", "Event bus publish failed, delivering directly", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}

	return s.handleEvent(ctx, event)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	switch event.EventType() {
	case events.DocumentReady, events.DocumentPreparationFailed:
	default:
		return nil
	}

	owner, ok := events.OwnerID(event)
	if !ok {
		s.logger.Warn("NotificationService", "Event without user_id dropped", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	if s.delivery != nil {
		s.delivery.Send(owner, event.EventType(), event.Payload())
	}
	s.logger.Debug("NotificationService", "Event delivered", map[string]interface{}{
		"type":    event.EventType(),
		"user_id": owner,
	})
	return nil
}

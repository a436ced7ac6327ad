package service

import (
	"context"
	"encoding/json"
	"errors"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

type PreparationNotifier interface {
	NotifyPreparation(ctx context.Context, msg dto.PreparationFinishedMessage) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	notifier   PreparationNotifier
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	notifier PreparationNotifier,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		notifier:   notifier,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PreparationFinishedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if err := cs.notifier.NotifyPreparation(ctx, payload); err != nil {
		if errors.Is(err, ErrMalformedEvent) {
			cs.logger.Warn("ConsumerService", "Dropping undeliverable preparation result", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			return
		}
		cs.logger.Error("ConsumerService", "Failed to deliver preparation result", map[string]interface{}{
			"document_id": payload.DocumentId,
			"error":       err.Error(),
		})
		msg.Nack()
		return
	}

	msg.Ack()
}

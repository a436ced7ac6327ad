package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentReady             = "DOCUMENT_READY"
	DocumentPreparationFailed = "DOCUMENT_PREPARATION_FAILED"
)

// NewDocumentReady announces that a document's topic is available.
func NewDocumentReady(ownerID uuid.UUID, documentID int64, topic string, generated bool) BaseEvent {
	return BaseEvent{
		Type: DocumentReady,
		Data: map[string]interface{}{
			"user_id":     ownerID.String(),
			"document_id": documentID,
			"topic":       topic,
			"generated":   generated,
		},
		OccurredAt: time.Now(),
	}
}

func NewDocumentPreparationFailed(ownerID uuid.UUID, documentID int64, reason, message string) BaseEvent {
	return BaseEvent{
		Type: DocumentPreparationFailed,
		Data: map[string]interface{}{
			"user_id":     ownerID.String(),
			"document_id": documentID,
			"reason":      reason,
			"message":     message,
		},
		OccurredAt: time.Now(),
	}
}

// OwnerID reads the "user_id" payload key every document event carries.
func OwnerID(e Event) (uuid.UUID, bool) {
	raw, ok := e.Payload()["user_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

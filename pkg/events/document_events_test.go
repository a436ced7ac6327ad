package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDocumentEvents(t *testing.T) {
	owner := uuid.New()

	ready := NewDocumentReady(owner, 9, "Quarterly revenue", true)
	assert.Equal(t, DocumentReady, ready.EventType())
	assert.Equal(t, int64(9), ready.Payload()["document_id"])
	assert.False(t, ready.Timestamp().IsZero())

	id, ok := OwnerID(ready)
	assert.True(t, ok)
	assert.Equal(t, owner, id)

	failed := NewDocumentPreparationFailed(owner, 9, "NO_CONTEXT", "no document text found")
	assert.Equal(t, DocumentPreparationFailed, failed.EventType())
	assert.Equal(t, "NO_CONTEXT", failed.Payload()["reason"])
}

func TestOwnerID_Missing(t *testing.T) {
	_, ok := OwnerID(BaseEvent{Type: "X", Data: map[string]interface{}{"user_id": "nope"}})
	assert.False(t, ok)

	_, ok = OwnerID(BaseEvent{Type: "X", Data: map[string]interface{}{}})
	assert.False(t, ok)
}

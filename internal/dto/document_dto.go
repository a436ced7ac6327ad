package dto

import (
	"time"

	"docqa-be/pkg/rag/preparation"
)

type DocumentResponse struct {
	Id         int64      `json:"id"`
	FileName   string     `json:"fileName"`
	FileType   string     `json:"fileType"`
	Topic      *string    `json:"topic"`
	UploadedAt *time.Time `json:"uploadedAt"`
}

type PrepareDocumentRequest struct {
	Force bool `json:"force"`
}

type PreparationStatusResponse struct {
	DocumentId int64             `json:"documentId"`
	Seq        uint64            `json:"seq"`
	State      preparation.State `json:"state"`
	Topic      string            `json:"topic,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

type RegenerateTopicResponse struct {
	DocumentId int64  `json:"documentId"`
	Topic      string `json:"topic"`
}

// PreparationFinishedMessage travels on the in-process bus once a
// preparation task completes.
type PreparationFinishedMessage struct {
	OwnerId    string            `json:"ownerId"`
	DocumentId int64             `json:"documentId"`
	Seq        uint64            `json:"seq"`
	State      preparation.State `json:"state"`
	Topic      string            `json:"topic,omitempty"`
	Generated  bool              `json:"generated"`
	Reason     string            `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
}

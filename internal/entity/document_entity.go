package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id            int64
	OwnerId       uuid.UUID
	FileName      string
	FileType      string
	Text          string
	ExtractedJSON []byte
	Topic         *string
	UploadedAt    *time.Time
}

// DisplayName is the label used in merged context headers.
func (d *Document) DisplayName() string {
	if d.FileName != "" {
		return d.FileName
	}
	return fmt.Sprintf("Record %d", d.Id)
}

// HasTopic reports whether a non-blank topic is already stored.
func (d *Document) HasTopic() bool {
	return d.Topic != nil && *d.Topic != ""
}

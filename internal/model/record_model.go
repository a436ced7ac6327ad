package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Record is an uploaded document with its extracted text.
type Record struct {
	Id            int64          `gorm:"primaryKey;autoIncrement"`
	UserId        uuid.UUID      `gorm:"type:uuid;not null;index"`
	FileName      string         `gorm:"type:varchar(512)"`
	FileType      string         `gorm:"type:varchar(128)"`
	ExtractedText string         `gorm:"type:text"`
	ExtractedJSON datatypes.JSON `gorm:"column:extracted_json;type:jsonb"`
	Topic         *string        `gorm:"type:varchar(255)"`
	UploadedAt    *time.Time     `gorm:"index"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (Record) TableName() string {
	return "records"
}

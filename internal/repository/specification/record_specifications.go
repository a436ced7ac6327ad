package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByOwner struct {
	OwnerID uuid.UUID
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.OwnerID)
}

type ByRecordID struct {
	ID int64
}

func (s ByRecordID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

type ByRecordIDs struct {
	IDs []int64
}

func (s ByRecordIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN ?", s.IDs)
}

// NewestFirst orders by upload time, undated records last, then by id.
type NewestFirst struct{}

func (s NewestFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("uploaded_at DESC NULLS LAST").Order("id DESC")
}

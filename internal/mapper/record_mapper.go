package mapper

import (
	"docqa-be/internal/entity"
	"docqa-be/internal/model"

	"gorm.io/datatypes"
)

type RecordMapper struct{}

func NewRecordMapper() *RecordMapper {
	return &RecordMapper{}
}

func (m *RecordMapper) ToEntity(r *model.Record) *entity.Document {
	if r == nil {
		return nil
	}

	var extracted []byte
	if len(r.ExtractedJSON) > 0 {
		extracted = []byte(r.ExtractedJSON)
	}

	return &entity.Document{
		Id:            r.Id,
		OwnerId:       r.UserId,
		FileName:      r.FileName,
		FileType:      r.FileType,
		Text:          r.ExtractedText,
		ExtractedJSON: extracted,
		Topic:         r.Topic,
		UploadedAt:    r.UploadedAt,
	}
}

func (m *RecordMapper) ToModel(d *entity.Document) *model.Record {
	if d == nil {
		return nil
	}

	var extracted datatypes.JSON
	if len(d.ExtractedJSON) > 0 {
		extracted = datatypes.JSON(d.ExtractedJSON)
	}

	return &model.Record{
		Id:            d.Id,
		UserId:        d.OwnerId,
		FileName:      d.FileName,
		FileType:      d.FileType,
		ExtractedText: d.Text,
		ExtractedJSON: extracted,
		Topic:         d.Topic,
		UploadedAt:    d.UploadedAt,
	}
}

func (m *RecordMapper) ToEntities(records []*model.Record) []*entity.Document {
	entities := make([]*entity.Document, len(records))
	for i, r := range records {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

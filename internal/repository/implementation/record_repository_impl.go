package implementation

import (
	"context"
	"errors"
	"fmt"

	"docqa-be/internal/entity"
	"docqa-be/internal/mapper"
	"docqa-be/internal/model"
	"docqa-be/internal/repository/contract"
	"docqa-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RecordMapper
}

func NewRecordRepository(db *gorm.DB) contract.RecordRepository {
	return &RecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewRecordMapper(),
	}
}

func (r *RecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Record
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	var models []*model.Record
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RecordRepositoryImpl) ListByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error) {
	return r.FindAll(ctx,
		specification.ByOwner{OwnerID: ownerId},
		specification.NewestFirst{},
	)
}

func (r *RecordRepositoryImpl) FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error) {
	return r.FindOne(ctx,
		specification.ByOwner{OwnerID: ownerId},
		specification.ByRecordID{ID: id},
	)
}

func (r *RecordRepositoryImpl) FindByOwnerAndIDs(ctx context.Context, ownerId uuid.UUID, ids []int64) ([]*entity.Document, error) {
	if len(ids) == 0 {
		return []*entity.Document{}, nil
	}
	return r.FindAll(ctx,
		specification.ByOwner{OwnerID: ownerId},
		specification.ByRecordIDs{IDs: ids},
		specification.OrderBy{Field: "id", Desc: true},
	)
}

func (r *RecordRepositoryImpl) UpdateTopic(ctx context.Context, ownerId uuid.UUID, id int64, topic string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Record{}).
		Scopes(specification.ByOwner{OwnerID: ownerId}.Apply, specification.ByRecordID{ID: id}.Apply).
		Update("topic", topic)
	if res.Error != nil {
		return fmt.Errorf("failed to update topic: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}

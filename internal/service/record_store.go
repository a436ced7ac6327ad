package service

import (
	"context"

	"docqa-be/internal/entity"
	"docqa-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// RecordStore serves the pipeline's storage lookups, one unit of work per call.
type RecordStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRecordStore(uowFactory unitofwork.RepositoryFactory) *RecordStore {
	return &RecordStore{uowFactory: uowFactory}
}

func (s *RecordStore) ListByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error) {
	return s.uowFactory.NewUnitOfWork(ctx).RecordRepository().ListByOwner(ctx, ownerId)
}

func (s *RecordStore) FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error) {
	return s.uowFactory.NewUnitOfWork(ctx).RecordRepository().FindByOwnerAndID(ctx, ownerId, id)
}

func (s *RecordStore) FindByOwnerAndIDs(ctx context.Context, ownerId uuid.UUID, ids []int64) ([]*entity.Document, error) {
	return s.uowFactory.NewUnitOfWork(ctx).RecordRepository().FindByOwnerAndIDs(ctx, ownerId, ids)
}

func (s *RecordStore) UpdateTopic(ctx context.Context, ownerId uuid.UUID, id int64, topic string) error {
	return s.uowFactory.NewUnitOfWork(ctx).RecordRepository().UpdateTopic(ctx, ownerId, id, topic)
}

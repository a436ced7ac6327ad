package contract

import (
	"context"

	"docqa-be/internal/entity"
	"docqa-be/internal/repository/specification"

	"github.com/google/uuid"
)

type RecordRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)

	// Owner-scoped lookups used by the scope resolver and the preparation coordinator.
	ListByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error)
	FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error)
	FindByOwnerAndIDs(ctx context.Context, ownerId uuid.UUID, ids []int64) ([]*entity.Document, error)
	UpdateTopic(ctx context.Context, ownerId uuid.UUID, id int64, topic string) error
}

package unitofwork

import (
	"context"

	"docqa-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	RecordRepository() contract.RecordRepository
}

package service

import (
	"context"
	"fmt"

	"docqa-be/internal/dto"
	"docqa-be/internal/entity"
	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/preparation"

	"github.com/google/uuid"
)

type DocumentStore interface {
	ListByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error)
	FindByOwnerAndID(ctx context.Context, ownerId uuid.UUID, id int64) (*entity.Document, error)
	UpdateTopic(ctx context.Context, ownerId uuid.UUID, id int64, topic string) error
}

type TopicGenerator interface {
	GenerateTopic(ctx context.Context, text string) (string, error)
}

type IDocumentService interface {
	List(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error)
	RegenerateTopic(ctx context.Context, userId uuid.UUID, documentId int64) (*dto.RegenerateTopicResponse, error)
}

type documentService struct {
	store     DocumentStore
	generator TopicGenerator
	logger    logger.ILogger
}

func NewDocumentService(store DocumentStore, generator TopicGenerator, log logger.ILogger) IDocumentService {
	return &documentService{
		store:     store,
		generator: generator,
		logger:    log,
	}
}

func (s *documentService) List(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error) {
	if userId == uuid.Nil {
		return nil, rag.ErrNotAuthenticated
	}

	docs, err := s.store.ListByOwner(ctx, userId)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		result = append(result, &dto.DocumentResponse{
			Id:         doc.Id,
			FileName:   doc.DisplayName(),
			FileType:   doc.FileType,
			Topic:      doc.Topic,
			UploadedAt: doc.UploadedAt,
		})
	}
	return result, nil
}

func (s *documentService) RegenerateTopic(ctx context.Context, userId uuid.UUID, documentId int64) (*dto.RegenerateTopicResponse, error) {
	if userId == uuid.Nil {
		return nil, rag.ErrNotAuthenticated
	}

	// 1. Load
	doc, err := s.store.FindByOwnerAndID(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	// 2. Generate from the document excerpt
	raw, err := s.generator.GenerateTopic(ctx, doc.Text)
	if err != nil {
		return nil, err
	}
	topic := preparation.NormalizeTopic(raw)
	if topic == "" {
		return nil, fmt.Errorf("empty topic for document %d: %w", documentId, rag.ErrGenerationFailure)
	}

	// 3. Persist
	if err := s.store.UpdateTopic(ctx, userId, documentId, topic); err != nil {
		return nil, err
	}

	s.logger.Info("DocumentService", "Topic regenerated", map[string]interface{}{
		"document_id": documentId,
		"topic":       topic,
	})

	return &dto.RegenerateTopicResponse{DocumentId: documentId, Topic: topic}, nil
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/repository/memory"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/preparation"

	"github.com/google/uuid"
)

type IPreparationService interface {
	Prepare(ctx context.Context, userId uuid.UUID, documentId int64, force bool) (*dto.PreparationStatusResponse, error)
	Status(ctx context.Context, userId uuid.UUID) (*dto.PreparationStatusResponse, error)
	Cancel(ctx context.Context, userId uuid.UUID) error
	Admit(userId uuid.UUID) error
}

type preparationService struct {
	store     preparation.DocumentStore
	registry  *memory.CoordinatorRegistry
	publisher IPublisherService
	logger    logger.ILogger
}

func NewPreparationService(
	store preparation.DocumentStore,
	asker preparation.Asker,
	publisher IPublisherService,
	topK int,
	registryTTL time.Duration,
	writeTimeout time.Duration,
	log logger.ILogger,
) IPreparationService {
	s := &preparationService{
		store:     store,
		publisher: publisher,
		logger:    log,
	}
	s.registry = memory.NewCoordinatorRegistry(registryTTL, func(owner uuid.UUID) *preparation.Coordinator {
		return preparation.NewCoordinator(owner, asker, store, preparation.Options{
			TopK:         topK,
			WriteTimeout: writeTimeout,
			OnFinish:     s.onFinish,
			Logger:       log,
		})
	})
	return s
}

func (s *preparationService) Prepare(ctx context.Context, userId uuid.UUID, documentId int64, force bool) (*dto.PreparationStatusResponse, error) {
	if userId == uuid.Nil {
		return nil, rag.ErrNotAuthenticated
	}

	// 1. Ownership check so unknown ids never start a task
	doc, err := s.store.FindByOwnerAndID(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	// 2. Activate; the gate closes before this returns
	task := s.registry.Get(userId).Prepare(ctx, documentId, force)

	return &dto.PreparationStatusResponse{
		DocumentId: task.DocumentID(),
		Seq:        task.Seq(),
		State:      preparation.StatePreparing,
	}, nil
}

func (s *preparationService) Status(ctx context.Context, userId uuid.UUID) (*dto.PreparationStatusResponse, error) {
	if userId == uuid.Nil {
		return nil, rag.ErrNotAuthenticated
	}

	coord, ok := s.registry.Peek(userId)
	if !ok {
		return &dto.PreparationStatusResponse{State: preparation.StateIdle}, nil
	}

	st := coord.Status()
	return &dto.PreparationStatusResponse{
		DocumentId: st.DocumentID,
		Seq:        st.Seq,
		State:      st.State,
		Topic:      st.Topic,
		Reason:     rag.Reason(st.Err),
	}, nil
}

func (s *preparationService) Cancel(ctx context.Context, userId uuid.UUID) error {
	if userId == uuid.Nil {
		return rag.ErrNotAuthenticated
	}
	if coord, ok := s.registry.Peek(userId); ok {
		coord.Cancel()
	}
	return nil
}

// Admit lets owners with no preparation history through.
func (s *preparationService) Admit(userId uuid.UUID) error {
	coord, ok := s.registry.Peek(userId)
	if !ok {
		return nil
	}
	return coord.Admit()
}

func (s *preparationService) onFinish(ctx context.Context, r preparation.Result) {
	msg := dto.PreparationFinishedMessage{
		OwnerId:    r.OwnerID.String(),
		DocumentId: r.DocumentID,
		Seq:        r.Seq,
		State:      r.State,
		Topic:      r.Topic,
		Generated:  r.Generated,
	}
	if r.Err != nil {
		msg.Reason = rag.Reason(r.Err)
		msg.Error = r.Err.Error()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("PreparationService", "Failed to encode preparation result", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Error("PreparationService", "Failed to publish preparation result", map[string]interface{}{
			"document_id": r.DocumentID,
			"error":       err.Error(),
		})
	}
}

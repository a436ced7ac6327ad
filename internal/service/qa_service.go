package service

import (
	"context"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/engine"
	"docqa-be/pkg/rag/scope"
	"docqa-be/pkg/stream"

	"github.com/google/uuid"
)

// Answerer is the retrieval and generation pipeline.
type Answerer interface {
	Ask(ctx context.Context, req engine.Request) (*engine.Answer, error)
	AskStream(ctx context.Context, req engine.Request) (*stream.Stream, error)
}

// Gate decides whether an owner may ask right now.
type Gate interface {
	Admit(userId uuid.UUID) error
}

type IQAService interface {
	Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error)
	AskStream(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*stream.Stream, error)
}

type qaService struct {
	engine Answerer
	gate   Gate
	logger logger.ILogger
}

func NewQAService(engine Answerer, gate Gate, log logger.ILogger) IQAService {
	return &qaService{
		engine: engine,
		gate:   gate,
		logger: log,
	}
}

// admit runs the checks shared by both ask modes, in order: caller, gate, scope.
func (s *qaService) admit(userId uuid.UUID, req *dto.AskRequest) (engine.Request, error) {
	if userId == uuid.Nil {
		return engine.Request{}, rag.ErrNotAuthenticated
	}

	if err := s.gate.Admit(userId); err != nil {
		s.logger.Info("QAService", "Question rejected by preparation gate", map[string]interface{}{
			"user_id": userId,
			"reason":  rag.Reason(err),
		})
		return engine.Request{}, err
	}

	sc, err := scope.Parse(req.Scope, req.DocumentID, req.DocumentIDs)
	if err != nil {
		return engine.Request{}, invalidScope(err)
	}

	return engine.Request{
		OwnerID:  userId,
		Question: req.Question,
		Category: req.Category,
		Scope:    sc,
		TopK:     req.TopK,
	}, nil
}

func (s *qaService) Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error) {
	engineReq, err := s.admit(userId, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.engine.Ask(ctx, engineReq)
	if err != nil {
		return nil, err
	}

	sources := answer.Sources
	if sources == nil {
		sources = []stream.Source{}
	}
	return &dto.AskResponse{
		Answer:  answer.Text,
		Sources: sources,
	}, nil
}

func (s *qaService) AskStream(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*stream.Stream, error) {
	engineReq, err := s.admit(userId, req)
	if err != nil {
		return nil, err
	}
	return s.engine.AskStream(ctx, engineReq)
}

package service

import (
	"context"
	"errors"
	"testing"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/rag/scope"
	"docqa-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openGate(uuid.UUID) error { return nil }

func TestQAService_Ask(t *testing.T) {
	eng := &gatedEngine{answer: "Paris"}
	svc := NewQAService(eng, gateFunc(openGate), logger.NewNopLogger())
	user := uuid.New()

	res, err := svc.Ask(context.Background(), user, &dto.AskRequest{
		Question:    "capital?",
		Scope:       "ids",
		DocumentIDs: []interface{}{float64(3), "5", -1},
		TopK:        2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris", res.Answer)
	assert.NotNil(t, res.Sources)

	require.Equal(t, 1, eng.callCount())
	got := eng.calls[0]
	assert.Equal(t, user, got.OwnerID)
	assert.Equal(t, scope.IDs{IDs: []int64{3, 5}}, got.Scope)
	assert.Equal(t, 2, got.TopK)
}

func TestQAService_RejectsBeforeBackend(t *testing.T) {
	tests := []struct {
		name   string
		user   uuid.UUID
		gate   Gate
		req    dto.AskRequest
		assert func(t *testing.T, err error)
	}{
		{
			name: "no caller",
			user: uuid.Nil,
			gate: gateFunc(openGate),
			req:  dto.AskRequest{Question: "q"},
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rag.ErrNotAuthenticated)
			},
		},
		{
			name: "still preparing",
			user: uuid.New(),
			gate: gateFunc(func(uuid.UUID) error { return rag.ErrStillPreparing }),
			req:  dto.AskRequest{Question: "q"},
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rag.ErrStillPreparing)
			},
		},
		{
			name: "preparation failed",
			user: uuid.New(),
			gate: gateFunc(func(uuid.UUID) error { return rag.ErrPreparationFailed }),
			req:  dto.AskRequest{Question: "q"},
			assert: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rag.ErrPreparationFailed)
			},
		},
		{
			name: "unknown scope",
			user: uuid.New(),
			gate: gateFunc(openGate),
			req:  dto.AskRequest{Question: "q", Scope: "everything"},
			assert: func(t *testing.T, err error) {
				var fe *fiber.Error
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, fiber.StatusBadRequest, fe.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &gatedEngine{answer: "x"}
			svc := NewQAService(eng, tt.gate, logger.NewNopLogger())

			_, err := svc.Ask(context.Background(), tt.user, &tt.req)
			tt.assert(t, err)

			_, err = svc.AskStream(context.Background(), tt.user, &tt.req)
			tt.assert(t, err)

			assert.Equal(t, 0, eng.callCount())
		})
	}
}

func TestQAService_AskStream(t *testing.T) {
	eng := &gatedEngine{answer: "streamed"}
	svc := NewQAService(eng, gateFunc(openGate), logger.NewNopLogger())

	s, err := svc.AskStream(context.Background(), uuid.New(), &dto.AskRequest{Question: "q"})
	require.NoError(t, err)

	text, err := stream.CollectText(s)
	require.NoError(t, err)
	assert.Equal(t, "streamed", text)
}

func TestQAService_EngineErrorPassesThrough(t *testing.T) {
	eng := &gatedEngine{err: rag.ErrNoRelevantContext}
	svc := NewQAService(eng, gateFunc(openGate), logger.NewNopLogger())

	_, err := svc.Ask(context.Background(), uuid.New(), &dto.AskRequest{Question: "q"})
	assert.ErrorIs(t, err, rag.ErrNoRelevantContext)
}

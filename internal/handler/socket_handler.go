package handler

import (
	"context"
	"encoding/json"
	"sync"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/service"
	internalWS "docqa-be/internal/websocket"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// FrameWriter delivers one encoded frame to the peer, blocking until it is
// queued or ctx ends.
type FrameWriter interface {
	Write(ctx context.Context, data []byte) error
}

type SocketHandler struct {
	qaService service.IQAService
	hub       *internalWS.Hub
	logger    logger.ILogger
}

func NewSocketHandler(qaService service.IQAService, hub *internalWS.Hub, log logger.ILogger) *SocketHandler {
	return &SocketHandler{
		qaService: qaService,
		hub:       hub,
		logger:    log,
	}
}

func (h *SocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/qa/v1/ws", h.ServeWs)
}

// ServeWs upgrades the request after checking the token. Browsers cannot set
// headers on the upgrade request, so the token may also come as ?token=.
func (h *SocketHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := serverutils.BearerToken(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	userID, err := serverutils.ParseUserToken(tokenStr)
	if err != nil {
		h.logger.Warn("SocketHandler", "Invalid token in websocket handshake", map[string]interface{}{
			"error": err.Error(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		session := h.NewSession(userID)
		defer session.Cancel()

		h.logger.Info("SocketHandler", "Starting websocket session", map[string]interface{}{
			"user_id": userID.String(),
		})
		internalWS.ServeWs(h.hub, conn, userID, func(ctx context.Context, client *internalWS.Client, data []byte) {
			session.Handle(ctx, client, data)
		})
		h.logger.Info("SocketHandler", "Websocket session ended", map[string]interface{}{
			"user_id": userID.String(),
		})
	})(c)
}

// AskSession holds the state of one connection. At most one ask runs at a
// time; a newer ask cancels the one in flight.
type AskSession struct {
	userID    uuid.UUID
	qaService service.IQAService
	logger    logger.ILogger

	mu      sync.Mutex
	current uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (h *SocketHandler) NewSession(userID uuid.UUID) *AskSession {
	return &AskSession{
		userID:    userID,
		qaService: h.qaService,
		logger:    h.logger,
	}
}

// Handle processes one inbound message. It returns once the ask is started;
// frames are written from a separate goroutine.
func (s *AskSession) Handle(ctx context.Context, w FrameWriter, data []byte) {
	var msg dto.SocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.send(ctx, w, map[string]interface{}{"type": "error", "error": "INVALID_MESSAGE"})
		return
	}

	switch msg.Type {
	case dto.SocketMessageCancel:
		s.Cancel()
	case dto.SocketMessageAsk:
		if err := serverutils.ValidateRequest(msg.AskRequest); err != nil {
			s.send(ctx, w, map[string]interface{}{"type": "error", "error": "INVALID_MESSAGE", "message": err.Error()})
			return
		}
		s.startAsk(ctx, w, msg.AskRequest)
	default:
		s.send(ctx, w, map[string]interface{}{"type": "error", "error": "UNKNOWN_MESSAGE_TYPE"})
	}
}

func (s *AskSession) startAsk(parent context.Context, w FrameWriter, req dto.AskRequest) {
	askCtx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.current++
	id := s.current
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(id, cancel)

		st, err := s.qaService.AskStream(askCtx, s.userID, &req)
		if err != nil {
			if askCtx.Err() == nil {
				s.send(askCtx, w, stream.Error(rag.Reason(err)))
			}
			return
		}
		defer st.Close()

		for {
			select {
			case <-askCtx.Done():
				return
			case frame, ok := <-st.Frames():
				if !ok {
					return
				}
				if err := s.send(askCtx, w, frame); err != nil {
					return
				}
			}
		}
	}()
}

// finish clears the cancel func unless a newer ask already replaced it.
func (s *AskSession) finish(id uint64, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	if s.current == id {
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Cancel stops the ask in flight, if any.
func (s *AskSession) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Wait blocks until every ask started on this session has returned.
func (s *AskSession) Wait() {
	s.wg.Wait()
}

func (s *AskSession) send(ctx context.Context, w FrameWriter, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := w.Write(ctx, data); err != nil {
		s.logger.Debug("SocketHandler", "Dropped frame", map[string]interface{}{
			"user_id": s.userID.String(),
			"error":   err.Error(),
		})
		return err
	}
	return nil
}

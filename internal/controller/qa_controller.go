package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/service"
	"docqa-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
)

type IQAController interface {
	RegisterRoutes(r fiber.Router)
	Ask(ctx *fiber.Ctx) error
	AskStream(ctx *fiber.Ctx) error
}

type qaController struct {
	service service.IQAService
}

func NewQAController(service service.IQAService) IQAController {
	return &qaController{service: service}
}

func (c *qaController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/qa/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("ask", c.Ask)
	h.Post("ask/stream", c.AskStream)
}

// Ask answers one question in a single response
// @Summary Ask a question about the user's documents
// @Tags QA
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.AskRequest true "Question and scope"
// @Success 200 {object} dto.AskResponse
// @Failure 409 {object} serverutils.Response "Document still preparing"
// @Router /api/qa/v1/ask [post]
func (c *qaController) Ask(ctx *fiber.Ctx) error {
	userId := serverutils.CurrentUserID(ctx)

	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
}

// AskStream answers as Server-Sent Events. Errors before the first frame are
// regular JSON errors; later failures arrive as an error frame.
// @Summary Ask a question and stream the answer
// @Tags QA
// @Security BearerAuth
// @Accept json
// @Produce text/event-stream
// @Param request body dto.AskRequest true "Question and scope"
// @Router /api/qa/v1/ask/stream [post]
func (c *qaController) AskStream(ctx *fiber.Ctx) error {
	userId := serverutils.CurrentUserID(ctx)

	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// The stream outlives this handler; it gets its own context.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	s, err := c.service.AskStream(streamCtx, userId, &req)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer s.Close()
		WriteEvents(w, s)
	})
	return nil
}

// WriteEvents copies frames to w as SSE "data:" events until the stream ends
// or the client goes away.
func WriteEvents(w *bufio.Writer, s *stream.Stream) {
	for frame := range s.Frames() {
		data, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Kind, data); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

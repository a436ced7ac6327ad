package controller

import (
	"strconv"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Prepare(ctx *fiber.Ctx) error
	PreparationStatus(ctx *fiber.Ctx) error
	CancelPreparation(ctx *fiber.Ctx) error
	RegenerateTopic(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService    service.IDocumentService
	preparationService service.IPreparationService
}

func NewDocumentController(documentService service.IDocumentService, preparationService service.IPreparationService) IDocumentController {
	return &documentController{
		documentService:    documentService,
		preparationService: preparationService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.GetAll)
	h.Get("preparation", c.PreparationStatus)
	h.Delete("preparation", c.CancelPreparation)
	h.Post(":id/prepare", c.Prepare)
	h.Post(":id/topic", c.RegenerateTopic)
}

func documentID(ctx *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}
	return id, nil
}

func (c *documentController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.documentService.List(ctx.UserContext(), serverutils.CurrentUserID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all documents", res))
}

// Prepare activates a document. The response comes back immediately with
// state "preparing"; the outcome is pushed over the websocket.
func (c *documentController) Prepare(ctx *fiber.Ctx) error {
	id, err := documentID(ctx)
	if err != nil {
		return err
	}

	var req dto.PrepareDocumentRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	res, err := c.preparationService.Prepare(ctx.UserContext(), serverutils.CurrentUserID(ctx), id, req.Force)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Preparation started", res))
}

func (c *documentController) PreparationStatus(ctx *fiber.Ctx) error {
	res, err := c.preparationService.Status(ctx.UserContext(), serverutils.CurrentUserID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get preparation status", res))
}

func (c *documentController) CancelPreparation(ctx *fiber.Ctx) error {
	if err := c.preparationService.Cancel(ctx.UserContext(), serverutils.CurrentUserID(ctx)); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Preparation cancelled", nil))
}

func (c *documentController) RegenerateTopic(ctx *fiber.Ctx) error {
	id, err := documentID(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.RegenerateTopic(ctx.UserContext(), serverutils.CurrentUserID(ctx), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success regenerate topic", res))
}

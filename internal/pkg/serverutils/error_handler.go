package serverutils

import (
	"errors"

	"docqa-be/pkg/rag"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, rag.ErrNoContext):
		return fiber.StatusNotFound
	case errors.Is(err, rag.ErrNoRelevantContext):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, rag.ErrStillPreparing), errors.Is(err, rag.ErrPreparationFailed):
		return fiber.StatusConflict
	case errors.Is(err, rag.ErrEmbeddingFailure),
		errors.Is(err, rag.ErrGenerationFailure),
		errors.Is(err, rag.ErrStreamTransport):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware renders errors returned by downstream handlers as JSON.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
		}

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			res := ErrorResponse(fiber.StatusBadRequest, "Validation failed")
			res.Errors = validationMessages(ve)
			return ctx.Status(fiber.StatusBadRequest).JSON(res)
		}

		code := StatusFor(err)
		res := ErrorResponse(code, err.Error())
		res.Reason = rag.Reason(err)
		return ctx.Status(code).JSON(res)
	}
}

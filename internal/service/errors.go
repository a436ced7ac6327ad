package service

import "github.com/gofiber/fiber/v2"

var (
	ErrDocumentNotFound = fiber.NewError(fiber.StatusNotFound, "document not found")
	ErrInvalidScope     = fiber.NewError(fiber.StatusBadRequest, "invalid scope")
)

func invalidScope(err error) error {
	return fiber.NewError(ErrInvalidScope.Code, ErrInvalidScope.Message+": "+err.Error())
}

package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"carealert/internal/validation"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// jsonInvalid returns a 400 response listing the failed fields. Errors that
// are not validation errors are reported as a generic bad request.
func jsonInvalid(c fiber.Ctx, err error) error {
	var ve *validation.Error
	if !errors.As(err, &ve) {
		return jsonError(c, fiber.StatusBadRequest, "invalid request")
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status": "error",
		"error":  ve.Error(),
		"fields": ve.Fields,
	})
}

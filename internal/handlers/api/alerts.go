package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"carealert/internal/alerts"
	"carealert/internal/db"
	"carealert/internal/validation"
)

// AlertHandler handles counselor review of crisis alerts.
type AlertHandler struct {
	alerts AlertRecorder
}

// NewAlertHandler creates a new API alert handler.
func NewAlertHandler(alerts AlertRecorder) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// UpdateStatus handles POST /api/v1/alerts/:id/status.
func (h *AlertHandler) UpdateStatus(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid alert id")
	}

	var body struct {
		Status string `json:"status" validate:"required"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(body); err != nil {
		return jsonInvalid(c, err)
	}

	alert, err := h.alerts.Transition(c.Context(), id, body.Status)
	switch {
	case err == nil:
		return jsonSuccess(c, alert)
	case validation.IsValidationError(err):
		return jsonInvalid(c, err)
	case errors.Is(err, db.ErrAlertNotFound):
		return jsonError(c, fiber.StatusNotFound, "alert not found")
	case errors.Is(err, alerts.ErrInvalidTransition), errors.Is(err, alerts.ErrAlertTerminal), errors.Is(err, db.ErrAlertConflict):
		return jsonError(c, fiber.StatusConflict, err.Error())
	default:
		return jsonError(c, fiber.StatusInternalServerError, "failed to update alert")
	}
}

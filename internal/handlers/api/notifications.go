package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"carealert/internal/models"
	"carealert/internal/notify"
	"carealert/internal/validation"
)

// PendingDispatcher delivers pending notification records.
type PendingDispatcher interface {
	DispatchPending(ctx context.Context, limit int, dryRun bool) ([]models.DispatchOutcome, error)
}

// NotificationLister lists a user's in-app notifications.
type NotificationLister interface {
	ListNotificationsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
}

// NotificationHandler handles notification enqueue, dispatch and listing.
type NotificationHandler struct {
	enqueuer   NotificationEnqueuer
	dispatcher PendingDispatcher
	lister     NotificationLister
}

// NewNotificationHandler creates a new API notification handler.
func NewNotificationHandler(enqueuer NotificationEnqueuer, dispatcher PendingDispatcher, lister NotificationLister) *NotificationHandler {
	return &NotificationHandler{enqueuer: enqueuer, dispatcher: dispatcher, lister: lister}
}

type enqueueBody struct {
	UserID       string              `json:"userId" validate:"required,uuid"`
	Type         string              `json:"type" validate:"required,max=64"`
	SourceEntity models.SourceEntity `json:"sourceEntity"`
	Data         map[string]any      `json:"data"`
}

// Enqueue handles POST /api/v1/notifications/enqueue.
func (h *NotificationHandler) Enqueue(c fiber.Ctx) error {
	var body enqueueBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(body); err != nil {
		return jsonInvalid(c, err)
	}

	res, err := h.enqueuer.Enqueue(c.Context(), notify.EnqueueRequest{
		UserID: uuid.MustParse(body.UserID),
		Type:   body.Type,
		Source: body.SourceEntity,
		Data:   body.Data,
	})
	if err != nil {
		if validation.IsValidationError(err) {
			return jsonInvalid(c, err)
		}
		slog.Error("enqueue failed", "user_id", body.UserID, "type", body.Type, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to enqueue notification")
	}

	return jsonSuccess(c, res)
}

// Dispatch handles POST /api/v1/notifications/dispatch.
func (h *NotificationHandler) Dispatch(c fiber.Ctx) error {
	var body struct {
		Limit  int  `json:"limit"`
		DryRun bool `json:"dryRun"`
	}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	outcomes, err := h.dispatcher.DispatchPending(c.Context(), body.Limit, body.DryRun)
	if err != nil {
		slog.Error("dispatch failed", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to load pending notifications")
	}

	return jsonSuccess(c, models.DispatchResponse{
		ProcessedCount: len(outcomes),
		Results:        outcomes,
	})
}

// ListForUser handles GET /api/v1/users/:id/notifications.
func (h *NotificationHandler) ListForUser(c fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		return jsonInvalid(c, validation.NewError("limit", "must be between 1 and 200"))
	}

	notifications, err := h.lister.ListNotificationsForUser(c.Context(), userID, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return jsonSuccess(c, notifications)
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"carealert/internal/crisis"
	"carealert/internal/metrics"
	"carealert/internal/models"
	"carealert/internal/notify"
	"carealert/internal/validation"
)

// AlertRecorder persists crisis alerts and moves them through review.
type AlertRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, event models.CrisisEvent) (*models.CrisisAlert, error)
	Transition(ctx context.Context, id uuid.UUID, to string) (*models.CrisisAlert, error)
}

// NotificationEnqueuer creates per-channel notification records.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, req notify.EnqueueRequest) (*models.EnqueueResponse, error)
}

// ClassifyHandler classifies free text for crisis signals.
type ClassifyHandler struct {
	classifier *crisis.Classifier
}

// NewClassifyHandler creates a new API classify handler.
func NewClassifyHandler(classifier *crisis.Classifier) *ClassifyHandler {
	return &ClassifyHandler{classifier: classifier}
}

// Classify returns the crisis event for the submitted text. Nothing is stored.
func (h *ClassifyHandler) Classify(c fiber.Ctx) error {
	var body struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if body.Text == nil {
		return jsonInvalid(c, validation.NewError("text", "is required"))
	}

	event, err := h.classifier.Classify(*body.Text)
	if err != nil {
		return jsonInvalid(c, err)
	}
	metrics.RecordClassification(event.Level)

	return jsonSuccess(c, event)
}

// ScreenHandler classifies text written by a user and, when the signal is
// strong enough, records an alert and notifies the user.
type ScreenHandler struct {
	classifier *crisis.Classifier
	alerts     AlertRecorder
	enqueuer   NotificationEnqueuer
	enabled    bool
	minLevel   string
}

// NewScreenHandler creates a new API screening handler. Alerts are raised
// for events at or above minLevel when enabled is set.
func NewScreenHandler(classifier *crisis.Classifier, alerts AlertRecorder, enqueuer NotificationEnqueuer, enabled bool, minLevel string) *ScreenHandler {
	return &ScreenHandler{
		classifier: classifier,
		alerts:     alerts,
		enqueuer:   enqueuer,
		enabled:    enabled,
		minLevel:   minLevel,
	}
}

// Screen handles POST /api/v1/screen.
func (h *ScreenHandler) Screen(c fiber.Ctx) error {
	var body struct {
		UserID string `json:"userId" validate:"required,uuid"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(body); err != nil {
		return jsonInvalid(c, err)
	}
	userID := uuid.MustParse(body.UserID)

	event, err := h.classifier.Classify(body.Text)
	if err != nil {
		return jsonInvalid(c, err)
	}
	metrics.RecordClassification(event.Level)

	resp := models.ScreenResponse{Event: event}
	if !h.enabled || !event.MeetsLevel(h.minLevel) {
		return jsonSuccess(c, resp)
	}

	alert, err := h.alerts.Record(c.Context(), userID, event)
	if err != nil {
		slog.Error("failed to record crisis alert", "user_id", userID, "level", event.Level, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to record alert")
	}
	resp.Alert = alert

	// The alert is stored; a failed enqueue is reported in the logs and the
	// response still carries the alert.
	res, err := h.enqueuer.Enqueue(c.Context(), notify.EnqueueRequest{
		UserID: userID,
		Type:   models.NotificationCrisisAlert,
		Source: models.SourceEntity{Type: "crisis_alert", ID: alert.ID.String()},
		Data:   map[string]any{"level": event.Level},
	})
	if err != nil {
		slog.Error("failed to enqueue crisis notification", "alert_id", alert.ID, "user_id", userID, "error", err)
	} else {
		resp.Notification = res
	}

	return jsonSuccess(c, resp)
}

package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carealert/internal/models"
	"carealert/internal/validation"
)

var (
	ErrInvalidTransition = errors.New("invalid alert status transition")
	ErrAlertTerminal     = errors.New("alert is already closed")
)

// Service records detected crisis events and moves alerts through their
// review lifecycle.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Record persists a pending alert for a detected event.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, event models.CrisisEvent) (*models.CrisisAlert, error) {
	if userID == uuid.Nil {
		return nil, validation.NewError("userId", "is required")
	}
	if !event.Detected || !models.IsValidLevel(event.Level) {
		return nil, validation.NewError("event", "must be a detected crisis event")
	}

	now := s.now().UTC()
	alert := &models.CrisisAlert{
		ID:         uuid.New(),
		UserID:     userID,
		Level:      event.Level,
		Triggers:   event.Triggers,
		Confidence: event.Confidence,
		Status:     models.AlertPending,
		DetectedAt: now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	slog.Info("crisis alert recorded",
		"alert_id", alert.ID, "user_id", userID, "level", alert.Level, "triggers", len(alert.Triggers))
	return alert, nil
}

// Transition moves an alert to status to.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to string) (*models.CrisisAlert, error) {
	if !models.IsValidAlertStatus(to) {
		return nil, validation.NewError("status", "must be a valid alert status")
	}

	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalAlertStatus(alert.Status) {
		return nil, fmt.Errorf("%w: status is %s", ErrAlertTerminal, alert.Status)
	}
	if !alert.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, alert.Status, to)
	}

	updated, err := s.store.UpdateAlertStatus(ctx, id, alert.Status, to, s.now().UTC())
	if err != nil {
		return nil, err
	}

	slog.Info("crisis alert status changed",
		"alert_id", id, "from", alert.Status, "to", to)
	return updated, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert status constants
const (
	AlertPending       = "pending"
	AlertAcknowledged  = "acknowledged"
	AlertContacted     = "contacted"
	AlertResolved      = "resolved"
	AlertFalsePositive = "false_positive"
)

// ActiveAlertStatuses are the statuses counted as open work.
var ActiveAlertStatuses = []string{AlertPending, AlertAcknowledged, AlertContacted}

// CrisisAlert is a persisted record of a detected crisis signal.
type CrisisAlert struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Level      string    `json:"level"`
	Triggers   []string  `json:"triggers"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`
	DetectedAt time.Time `json:"detected_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// alertFlow lists the forward step allowed from each non-terminal status.
var alertFlow = map[string]string{
	AlertPending:      AlertAcknowledged,
	AlertAcknowledged: AlertContacted,
	AlertContacted:    AlertResolved,
}

// IsValidAlertStatus reports whether status is a known alert status.
func IsValidAlertStatus(status string) bool {
	switch status {
	case AlertPending, AlertAcknowledged, AlertContacted, AlertResolved, AlertFalsePositive:
		return true
	}
	return false
}

// IsTerminalAlertStatus reports whether no further transitions are allowed.
func IsTerminalAlertStatus(status string) bool {
	return status == AlertResolved || status == AlertFalsePositive
}

// IsActive returns true if the alert still needs attention.
func (a *CrisisAlert) IsActive() bool {
	for _, s := range ActiveAlertStatuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// CanTransitionTo returns true if the alert may move to the given status.
// Alerts advance one step at a time and may be marked false_positive from
// any non-terminal status.
func (a *CrisisAlert) CanTransitionTo(status string) bool {
	if IsTerminalAlertStatus(a.Status) {
		return false
	}
	if status == AlertFalsePositive {
		return true
	}
	return alertFlow[a.Status] == status
}

// ResponseTime is the time between detection and the last status change.
func (a *CrisisAlert) ResponseTime() time.Duration {
	return a.UpdatedAt.Sub(a.DetectedAt)
}

// Package alerts persists crisis alerts, enforces their status lifecycle
// and summarises them for dashboards.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carealert/internal/models"
)

// Store is the alert record store.
type Store interface {
	ReadStore
	CreateAlert(ctx context.Context, a *models.CrisisAlert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*models.CrisisAlert, error)
	// UpdateAlertStatus moves the alert from one status to another. It
	// returns db.ErrAlertConflict when the stored status is no longer from.
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (*models.CrisisAlert, error)
}

// ReadStore is the read side used by the aggregator.
type ReadStore interface {
	CountActiveAlerts(ctx context.Context) (int, error)
	ListAlertsDetectedSince(ctx context.Context, since time.Time) ([]models.CrisisAlert, error)
	ListAlertsResolvedSince(ctx context.Context, since time.Time) ([]models.CrisisAlert, error)
}

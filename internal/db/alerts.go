package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"carealert/internal/models"
)

const alertColumns = `id, user_id, level, triggers, confidence, status, detected_at, updated_at`

func scanAlert(row pgx.Row) (*models.CrisisAlert, error) {
	var a models.CrisisAlert
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Level,
		&a.Triggers,
		&a.Confidence,
		&a.Status,
		&a.DetectedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAlerts(rows pgx.Rows) ([]models.CrisisAlert, error) {
	defer rows.Close()

	var alerts []models.CrisisAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// CreateAlert inserts a crisis alert.
func (d *DB) CreateAlert(ctx context.Context, a *models.CrisisAlert) error {
	query := `
		INSERT INTO crisis_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	triggers := a.Triggers
	if triggers == nil {
		triggers = []string{}
	}

	_, err := d.Pool.Exec(ctx, query,
		a.ID, a.UserID, a.Level, triggers, a.Confidence, a.Status, a.DetectedAt, a.UpdatedAt)
	return err
}

// GetAlert retrieves an alert by ID.
func (d *DB) GetAlert(ctx context.Context, id uuid.UUID) (*models.CrisisAlert, error) {
	return scanAlert(d.Pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM crisis_alerts WHERE id = $1`, id))
}

// UpdateAlertStatus moves an alert from one status to another. It returns
// ErrAlertConflict if the stored status is no longer from.
func (d *DB) UpdateAlertStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (*models.CrisisAlert, error) {
	query := `
		UPDATE crisis_alerts SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + alertColumns

	a, err := scanAlert(d.Pool.QueryRow(ctx, query, id, from, to, at))
	if errors.Is(err, ErrAlertNotFound) {
		if _, getErr := d.GetAlert(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlertConflict
	}
	return a, err
}

// CountActiveAlerts counts alerts that still need attention.
func (d *DB) CountActiveAlerts(ctx context.Context) (int, error) {
	var n int
	err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM crisis_alerts WHERE status = ANY($1)`, models.ActiveAlertStatuses).Scan(&n)
	return n, err
}

// ListAlertsDetectedSince returns alerts detected at or after since.
func (d *DB) ListAlertsDetectedSince(ctx context.Context, since time.Time) ([]models.CrisisAlert, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+alertColumns+` FROM crisis_alerts WHERE detected_at >= $1 ORDER BY detected_at`, since)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// ListAlertsResolvedSince returns resolved alerts whose last change is at or after since.
func (d *DB) ListAlertsResolvedSince(ctx context.Context, since time.Time) ([]models.CrisisAlert, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+alertColumns+` FROM crisis_alerts WHERE status = $1 AND updated_at >= $2 ORDER BY updated_at`,
		models.AlertResolved, since)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// ListAlertsByStatus returns the most recent alerts in a status, for the ops page.
func (d *DB) ListAlertsByStatus(ctx context.Context, status string, limit int) ([]models.CrisisAlert, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+alertColumns+` FROM crisis_alerts WHERE status = $1 ORDER BY detected_at DESC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

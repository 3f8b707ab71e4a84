package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"carealert/internal/models"
)

// UpsertUser creates or updates a user based on their OIDC subject.
// On conflict user.ID is replaced with the stored ID.
func (d *DB) UpsertUser(ctx context.Context, sub string, user *models.User) error {
	query := `
		INSERT INTO users (id, sub, email, email_verified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sub) DO UPDATE SET
			email = EXCLUDED.email,
			email_verified = EXCLUDED.email_verified,
			updated_at = NOW()
		RETURNING id
	`

	return d.Pool.QueryRow(ctx, query, user.ID, sub, user.Email, user.EmailVerified).Scan(&user.ID)
}

// GetUserByID retrieves a user's identity record.
func (d *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, email, email_verified FROM users WHERE id = $1`

	var user models.User
	err := d.Pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.EmailVerified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UpsertContactPreference stores the user's phone and preferred channel.
func (d *DB) UpsertContactPreference(ctx context.Context, pref *models.ContactPreference) error {
	query := `
		INSERT INTO profiles (user_id, phone, preferred_contact)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			phone = EXCLUDED.phone,
			preferred_contact = EXCLUDED.preferred_contact,
			updated_at = NOW()
	`

	_, err := d.Pool.Exec(ctx, query, pref.UserID, pref.Phone, nullIfEmpty(pref.PreferredChannel))
	return err
}

// GetContactPreference returns the user's profile, or nil if they have none.
func (d *DB) GetContactPreference(ctx context.Context, userID uuid.UUID) (*models.ContactPreference, error) {
	query := `SELECT user_id, phone, COALESCE(preferred_contact, '') FROM profiles WHERE user_id = $1`

	var pref models.ContactPreference
	err := d.Pool.QueryRow(ctx, query, userID).Scan(&pref.UserID, &pref.Phone, &pref.PreferredChannel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &pref, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

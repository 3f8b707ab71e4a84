package db

import (
	"context"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"carealert/internal/models"
	"carealert/migrations"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// RunMigrations runs all embedded SQL migrations.
func (d *DB) RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// SeedDevUsers inserts one user per contact preference for development.
// Existing users are left untouched.
func (d *DB) SeedDevUsers(ctx context.Context) error {
	users := []struct {
		sub   string
		email string
		phone string
		pref  string
	}{
		{"dev-email", "email.student@example.edu", "", models.ContactEmail},
		{"dev-phone", "phone.student@example.edu", "+15555550100", models.ContactPhone},
		{"dev-anonymous", "anon.student@example.edu", "+15555550101", models.ContactAnonymous},
		{"dev-unset", "unset.student@example.edu", "", models.ContactUnset},
	}

	for _, u := range users {
		user := &models.User{ID: uuid.New(), Email: u.email, EmailVerified: true}
		if err := d.UpsertUser(ctx, u.sub, user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.sub, err)
		}
		pref := &models.ContactPreference{UserID: user.ID, Phone: u.phone, PreferredChannel: u.pref}
		if err := d.UpsertContactPreference(ctx, pref); err != nil {
			return fmt.Errorf("failed to seed profile %s: %w", u.sub, err)
		}
	}

	return nil
}

// Package contact resolves where a user can be reached.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carealert/internal/models"
)

// ErrUnresolved is returned when the identity lookup for a user fails.
var ErrUnresolved = errors.New("contact unresolved")

// IdentityStore looks up identity-provider records.
type IdentityStore interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// ProfileStore looks up phone numbers and channel preferences.
// It returns nil, nil when the user has no profile.
type ProfileStore interface {
	GetContactPreference(ctx context.Context, userID uuid.UUID) (*models.ContactPreference, error)
}

// Resolver builds ContactProfiles from the identity and profile stores.
// It holds no cache itself; each batch calls NewRun.
type Resolver struct {
	identity IdentityStore
	profiles ProfileStore
	timeout  time.Duration
}

// NewResolver creates a resolver. timeout bounds each lookup pair.
func NewResolver(identity IdentityStore, profiles ProfileStore, timeout time.Duration) *Resolver {
	return &Resolver{identity: identity, profiles: profiles, timeout: timeout}
}

// Run is a resolution scope with its own cache, owned by one enqueue or
// dispatch batch and discarded when that batch ends.
type Run struct {
	resolver *Resolver

	mu    sync.Mutex
	cache map[uuid.UUID]*models.ContactProfile
}

// NewRun starts a fresh cache scope.
func (r *Resolver) NewRun() *Run {
	return &Run{
		resolver: r,
		cache:    make(map[uuid.UUID]*models.ContactProfile),
	}
}

// Resolve returns the contact profile for userID, using the run cache.
// Failed resolutions are not cached.
func (run *Run) Resolve(ctx context.Context, userID uuid.UUID) (*models.ContactProfile, error) {
	run.mu.Lock()
	if p, ok := run.cache[userID]; ok {
		run.mu.Unlock()
		return p, nil
	}
	run.mu.Unlock()

	p, err := run.resolver.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	run.cache[userID] = p
	run.mu.Unlock()
	return p, nil
}

// Size returns the number of cached profiles.
func (run *Run) Size() int {
	run.mu.Lock()
	defer run.mu.Unlock()
	return len(run.cache)
}

func (r *Resolver) resolve(ctx context.Context, userID uuid.UUID) (*models.ContactProfile, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		user *models.User
		pref *models.ContactPreference
	)

	// Only the identity lookup can fail the group; profile problems degrade
	// to an empty preference.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := r.identity.GetUserByID(gctx, userID)
		if err != nil {
			return fmt.Errorf("%w: identity lookup for %s: %v", ErrUnresolved, userID, err)
		}
		user = u
		return nil
	})
	g.Go(func() error {
		p, err := r.profiles.GetContactPreference(gctx, userID)
		if err != nil {
			slog.Warn("profile lookup failed, continuing without phone or preference",
				"user_id", userID, "error", err)
			return nil
		}
		pref = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profile := &models.ContactProfile{
		UserID:           userID,
		PreferredChannel: models.ContactUnset,
	}
	if user != nil && user.EmailVerified {
		profile.Email = strings.TrimSpace(user.Email)
	}
	if pref != nil {
		profile.Phone = strings.TrimSpace(pref.Phone)
		profile.PreferredChannel = normalizePreference(pref.PreferredChannel)
	}

	return profile, nil
}

func normalizePreference(p string) string {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case models.ContactEmail, models.ContactPhone, models.ContactAnonymous:
		return p
	default:
		return models.ContactUnset
	}
}

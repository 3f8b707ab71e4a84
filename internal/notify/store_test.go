package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carealert/internal/contact"
	"carealert/internal/db"
	"carealert/internal/models"
)

// memStore is an in-memory Store with the same uniqueness rule as the
// Postgres schema: one record per (user, type, channel, source).
type memStore struct {
	mu          sync.Mutex
	records     []*models.Notification
	failChannel map[string]error
	failList    error
	failMark    error
	existsErr   error
	markCalls    int
	createCalls  int
	attemptCalls int
}

func newMemStore() *memStore {
	return &memStore{failChannel: map[string]error{}}
}

func (s *memStore) NotificationExists(ctx context.Context, userID uuid.UUID, typ string, src models.SourceEntity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, n := range s.records {
		if n.UserID == userID && n.Type == typ && n.Source() == src {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if err := s.failChannel[n.Channel]; err != nil {
		return err
	}
	for _, existing := range s.records {
		if existing.UserID == n.UserID && existing.Type == n.Type &&
			existing.Channel == n.Channel && existing.Source() == n.Source() {
			return fmt.Errorf("insert notification: %w", db.ErrDuplicateNotification)
		}
	}
	cp := *n
	s.records = append(s.records, &cp)
	return nil
}

func (s *memStore) ListPendingNotifications(ctx context.Context, channels []string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var pending []models.Notification
	for _, n := range s.records {
		if n.SentAt == nil && slices.Contains(channels, n.Channel) {
			pending = append(pending, *n)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Attempts != pending[j].Attempts {
			return pending[i].Attempts < pending[j].Attempts
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memStore) MarkNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.failMark != nil {
		return s.failMark
	}
	for _, n := range s.records {
		if n.ID == id {
			t := sentAt
			n.SentAt = &t
			return nil
		}
	}
	return db.ErrNotificationNotFound
}

func (s *memStore) RecordDeliveryAttempt(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptCalls++
	for _, n := range s.records {
		if n.ID == id && n.SentAt == nil {
			n.Attempts++
			return nil
		}
	}
	return db.ErrNotificationNotFound
}

func (s *memStore) add(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := n
	s.records = append(s.records, &cp)
}

func (s *memStore) byChannel(userID uuid.UUID) map[string]*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]*models.Notification{}
	for _, n := range s.records {
		if n.UserID == userID {
			out[n.Channel] = n
		}
	}
	return out
}

func (s *memStore) get(id uuid.UUID) *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.records {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// directory is an identity and profile store backed by maps.
type directory struct {
	users   map[uuid.UUID]*models.User
	prefs   map[uuid.UUID]*models.ContactPreference
	lookups int
	mu      sync.Mutex
}

func newDirectory() *directory {
	return &directory{
		users: map[uuid.UUID]*models.User{},
		prefs: map[uuid.UUID]*models.ContactPreference{},
	}
}

func (d *directory) addUser(email, phone, pref string) uuid.UUID {
	id := uuid.New()
	d.users[id] = &models.User{ID: id, Email: email, EmailVerified: email != ""}
	d.prefs[id] = &models.ContactPreference{UserID: id, Phone: phone, PreferredChannel: pref}
	return id
}

func (d *directory) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	d.mu.Lock()
	d.lookups++
	d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return u, nil
}

func (d *directory) GetContactPreference(ctx context.Context, id uuid.UUID) (*models.ContactPreference, error) {
	return d.prefs[id], nil
}

func (d *directory) resolver() *contact.Resolver {
	return contact.NewResolver(d, d, time.Second)
}

// recordingSender records deliveries and can be told to fail.
type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	block bool
}

func (s *recordingSender) Send(ctx context.Context, recipient, subject, body string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, recipient)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var errBoom = errors.New("boom")

type capturePublisher struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (p *capturePublisher) Publish(n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, n.ID)
}

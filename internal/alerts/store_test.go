package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"carealert/internal/db"
	"carealert/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	alerts    map[uuid.UUID]*models.CrisisAlert
	err       error
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{alerts: map[uuid.UUID]*models.CrisisAlert{}}
}

func (s *memStore) add(a models.CrisisAlert) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.alerts[a.ID] = &a
	return a.ID
}

func (s *memStore) CreateAlert(ctx context.Context, a *models.CrisisAlert) error {
	if s.err != nil {
		return s.err
	}
	s.add(*a)
	return nil
}

func (s *memStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.CrisisAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, db.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) UpdateAlertStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) (*models.CrisisAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, db.ErrAlertNotFound
	}
	if a.Status != from {
		return nil, db.ErrAlertConflict
	}
	a.Status, a.UpdatedAt = to, at
	cp := *a
	return &cp, nil
}

func (s *memStore) CountActiveAlerts(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, a := range s.alerts {
		if a.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListAlertsDetectedSince(ctx context.Context, since time.Time) ([]models.CrisisAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []models.CrisisAlert
	for _, a := range s.alerts {
		if !a.DetectedAt.Before(since) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) ListAlertsResolvedSince(ctx context.Context, since time.Time) ([]models.CrisisAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CrisisAlert
	for _, a := range s.alerts {
		if a.Status == models.AlertResolved && !a.UpdatedAt.Before(since) {
			out = append(out, *a)
		}
	}
	return out, nil
}

package alerts

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"carealert/internal/models"
)

const week = 7 * 24 * time.Hour

// Aggregator computes the crisis dashboard summary from alert records.
// Results are cached for ttl; a zero ttl disables caching.
type Aggregator struct {
	store ReadStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	cached   *models.CrisisMetrics
	cachedAt time.Time
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store ReadStore, ttl time.Duration) *Aggregator {
	return &Aggregator{store: store, ttl: ttl, now: time.Now}
}

// Compute returns the current summary. The returned value is a copy.
func (a *Aggregator) Compute(ctx context.Context) (*models.CrisisMetrics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.cached != nil && a.ttl > 0 && now.Sub(a.cachedAt) < a.ttl {
		m := *a.cached
		return &m, nil
	}

	m, err := a.compute(ctx, now)
	if err != nil {
		return nil, err
	}
	a.cached, a.cachedAt = m, now

	out := *m
	return &out, nil
}

func (a *Aggregator) compute(ctx context.Context, now time.Time) (*models.CrisisMetrics, error) {
	weekAgo := now.Add(-week)

	active, err := a.store.CountActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active alerts: %w", err)
	}

	detected, err := a.store.ListAlertsDetectedSince(ctx, now.Add(-2*week))
	if err != nil {
		return nil, fmt.Errorf("list detected alerts: %w", err)
	}

	var thisWeek, lastWeek, resolvedThisWeek int
	for _, alert := range detected {
		if alert.DetectedAt.Before(weekAgo) {
			lastWeek++
			continue
		}
		thisWeek++
		if alert.Status == models.AlertResolved {
			resolvedThisWeek++
		}
	}

	resolved, err := a.store.ListAlertsResolvedSince(ctx, weekAgo)
	if err != nil {
		return nil, fmt.Errorf("list resolved alerts: %w", err)
	}

	return &models.CrisisMetrics{
		TotalAlerts:            thisWeek,
		ActiveAlerts:           active,
		AvgResponseTimeMinutes: averageResponseMinutes(resolved),
		ResolutionRatePercent:  resolutionRate(resolvedThisWeek, thisWeek),
		WeeklyTrendPercent:     weeklyTrend(thisWeek, lastWeek),
	}, nil
}

// weeklyTrend is the week-over-week change in percent, 0 when there is no
// previous week to compare against.
func weeklyTrend(thisWeek, lastWeek int) float64 {
	if lastWeek == 0 {
		return 0
	}
	return round1(float64(thisWeek-lastWeek) / float64(lastWeek) * 100)
}

func resolutionRate(resolved, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(resolved) / float64(total) * 100))
}

func averageResponseMinutes(resolved []models.CrisisAlert) float64 {
	if len(resolved) == 0 {
		return 0
	}
	var sum time.Duration
	for i := range resolved {
		sum += resolved[i].ResponseTime()
	}
	return round1(sum.Minutes() / float64(len(resolved)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

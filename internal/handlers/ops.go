// Package handlers serves the HTML pages of the service.
package handlers

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v3"

	"carealert/internal/models"
)

// recentAlertLimit caps each status list on the ops page.
const recentAlertLimit = 20

// MetricsComputer computes the crisis alert summary.
type MetricsComputer interface {
	Compute(ctx context.Context) (*models.CrisisMetrics, error)
}

// OpsStore provides the queue and alert data shown on the ops page.
type OpsStore interface {
	CountPendingByChannel(ctx context.Context) (map[string]int, error)
	ListAlertsByStatus(ctx context.Context, status string, limit int) ([]models.CrisisAlert, error)
}

// ChannelCount is one row of the pending queue table.
type ChannelCount struct {
	Channel string
	Count   int
}

// OpsHandler renders the operator dashboard.
type OpsHandler struct {
	metrics   MetricsComputer
	store     OpsStore
	siteTitle string
}

// NewOpsHandler creates a new ops handler.
func NewOpsHandler(metrics MetricsComputer, store OpsStore, siteTitle string) *OpsHandler {
	return &OpsHandler{metrics: metrics, store: store, siteTitle: siteTitle}
}

// Index renders the dashboard with alert metrics, the pending queue and the
// alerts still waiting for a counselor.
func (h *OpsHandler) Index(c fiber.Ctx) error {
	ctx := c.Context()

	m, err := h.metrics.Compute(ctx)
	if err != nil {
		return err
	}

	counts, err := h.store.CountPendingByChannel(ctx)
	if err != nil {
		return err
	}

	pending, err := h.store.ListAlertsByStatus(ctx, models.AlertPending, recentAlertLimit)
	if err != nil {
		return err
	}
	acknowledged, err := h.store.ListAlertsByStatus(ctx, models.AlertAcknowledged, recentAlertLimit)
	if err != nil {
		return err
	}

	return c.Render("ops", fiber.Map{
		"Title":        "Operations",
		"SiteTitle":    h.siteTitle,
		"Metrics":      m,
		"Queue":        sortedCounts(counts),
		"QueueTotal":   total(counts),
		"Pending":      pending,
		"Acknowledged": acknowledged,
	})
}

// sortedCounts lists every known channel, including empty ones, in a stable order.
func sortedCounts(counts map[string]int) []ChannelCount {
	seen := map[string]bool{}
	out := make([]ChannelCount, 0, len(counts)+3)
	for _, ch := range []string{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS} {
		out = append(out, ChannelCount{Channel: ch, Count: counts[ch]})
		seen[ch] = true
	}

	var extra []string
	for ch := range counts {
		if !seen[ch] {
			extra = append(extra, ch)
		}
	}
	sort.Strings(extra)
	for _, ch := range extra {
		out = append(out, ChannelCount{Channel: ch, Count: counts[ch]})
	}
	return out
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"carealert/internal/models"
)

// MetricsComputer computes the crisis alert summary.
type MetricsComputer interface {
	Compute(ctx context.Context) (*models.CrisisMetrics, error)
}

// MetricsHandler serves the crisis dashboard summary.
type MetricsHandler struct {
	metrics MetricsComputer
}

// NewMetricsHandler creates a new API metrics handler.
func NewMetricsHandler(metrics MetricsComputer) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// CrisisMetrics handles GET /api/v1/crisis-metrics.
func (h *MetricsHandler) CrisisMetrics(c fiber.Ctx) error {
	m, err := h.metrics.Compute(c.Context())
	if err != nil {
		slog.Error("failed to compute crisis metrics", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to compute metrics")
	}
	return jsonSuccess(c, m)
}

package server

import (
	"context"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carealert/internal/alerts"
	"carealert/internal/crisis"
	"carealert/internal/db"
	"carealert/internal/handlers"
	"carealert/internal/handlers/api"
	"carealert/internal/middleware"
	"carealert/internal/notify"
)

// Services are the domain components the routes are served by.
type Services struct {
	DB         *db.DB
	Classifier *crisis.Classifier
	Alerts     *alerts.Service
	Aggregator *alerts.Aggregator
	Enqueuer   *notify.Enqueuer
	Dispatcher *notify.Dispatcher
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(ctx context.Context, svc Services) error {
	auth, err := middleware.NewBearerAuth(ctx, s.Cfg.OIDCIssuer, s.Cfg.OIDCAudience)
	if err != nil {
		return err
	}

	s.mount(auth, routeHandlers{
		health:        api.NewHealthHandler(svc.DB),
		classify:      api.NewClassifyHandler(svc.Classifier),
		screen:        api.NewScreenHandler(svc.Classifier, svc.Alerts, svc.Enqueuer, s.Cfg.AlertingEnabled, s.Cfg.AlertMinLevel),
		notifications: api.NewNotificationHandler(svc.Enqueuer, svc.Dispatcher, svc.DB),
		alerts:        api.NewAlertHandler(svc.Alerts),
		metrics:       api.NewMetricsHandler(svc.Aggregator),
		ops:           handlers.NewOpsHandler(svc.Aggregator, svc.DB, s.Cfg.SiteTitle),
	})
	return nil
}

type routeHandlers struct {
	health        *api.HealthHandler
	classify      *api.ClassifyHandler
	screen        *api.ScreenHandler
	notifications *api.NotificationHandler
	alerts        *api.AlertHandler
	metrics       *api.MetricsHandler
	ops           *handlers.OpsHandler
}

func (s *Server) mount(auth *middleware.BearerAuth, h routeHandlers) {
	s.App.Get("/healthz", h.health.Healthz)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.App.Get("/ops", auth.Require, h.ops.Index)

	v1 := s.App.Group("/api/v1", auth.Require)
	v1.Post("/classify", h.classify.Classify)
	v1.Post("/screen", h.screen.Screen)
	v1.Post("/notifications/enqueue", h.notifications.Enqueue)
	v1.Post("/notifications/dispatch", h.notifications.Dispatch)
	v1.Get("/users/:id/notifications", h.notifications.ListForUser)
	v1.Get("/crisis-metrics", h.metrics.CrisisMetrics)
	v1.Post("/alerts/:id/status", h.alerts.UpdateStatus)
}

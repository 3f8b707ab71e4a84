package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"carealert/internal/models"
)

var (
	activeAlertsDesc = prometheus.NewDesc(
		"carealert_alerts_active",
		"Crisis alerts in pending, acknowledged or contacted status",
		nil, nil,
	)
	weeklyAlertsDesc = prometheus.NewDesc(
		"carealert_alerts_detected_7d",
		"Crisis alerts detected in the trailing 7 days",
		nil, nil,
	)
	responseTimeDesc = prometheus.NewDesc(
		"carealert_alert_response_minutes_7d",
		"Mean minutes from detection to resolution over the trailing 7 days",
		nil, nil,
	)
	resolutionRateDesc = prometheus.NewDesc(
		"carealert_alert_resolution_rate_percent_7d",
		"Percent of alerts detected in the trailing 7 days that are resolved",
		nil, nil,
	)
	weeklyTrendDesc = prometheus.NewDesc(
		"carealert_alert_weekly_trend_percent",
		"Week-over-week change in detected alerts",
		nil, nil,
	)
	pendingDesc = prometheus.NewDesc(
		"carealert_notifications_pending",
		"Notifications not yet delivered, by channel",
		[]string{"channel"}, nil,
	)
)

var (
	classificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carealert_classifications_total",
		Help: "Texts classified, by detected level",
	}, []string{"level"})

	enqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carealert_notifications_enqueued_total",
		Help: "Per-channel enqueue results",
	}, []string{"channel", "status"})

	dispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carealert_notifications_dispatched_total",
		Help: "Per-record dispatch outcomes",
	}, []string{"channel", "status"})
)

// AlertSource computes the crisis alert summary.
type AlertSource interface {
	Compute(ctx context.Context) (*models.CrisisMetrics, error)
}

// PendingSource counts undelivered notifications.
type PendingSource interface {
	CountPendingByChannel(ctx context.Context) (map[string]int, error)
}

// CrisisCollector is a custom Prometheus collector that reads the alert
// summary and pending counts on each scrape.
type CrisisCollector struct {
	alerts  AlertSource
	pending PendingSource
	timeout time.Duration
}

// NewCrisisCollector creates a collector. Either source may be nil.
func NewCrisisCollector(alerts AlertSource, pending PendingSource) *CrisisCollector {
	return &CrisisCollector{alerts: alerts, pending: pending, timeout: 5 * time.Second}
}

// Describe sends the metric descriptors to the channel.
func (c *CrisisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeAlertsDesc
	ch <- weeklyAlertsDesc
	ch <- responseTimeDesc
	ch <- resolutionRateDesc
	ch <- weeklyTrendDesc
	ch <- pendingDesc
}

// Collect queries the sources and emits gauges.
func (c *CrisisCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if c.alerts != nil {
		m, err := c.alerts.Compute(ctx)
		if err != nil {
			slog.Error("failed to collect crisis alert metrics", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(activeAlertsDesc, prometheus.GaugeValue, float64(m.ActiveAlerts))
			ch <- prometheus.MustNewConstMetric(weeklyAlertsDesc, prometheus.GaugeValue, float64(m.TotalAlerts))
			ch <- prometheus.MustNewConstMetric(responseTimeDesc, prometheus.GaugeValue, m.AvgResponseTimeMinutes)
			ch <- prometheus.MustNewConstMetric(resolutionRateDesc, prometheus.GaugeValue, float64(m.ResolutionRatePercent))
			ch <- prometheus.MustNewConstMetric(weeklyTrendDesc, prometheus.GaugeValue, m.WeeklyTrendPercent)
		}
	}

	if c.pending != nil {
		counts, err := c.pending.CountPendingByChannel(ctx)
		if err != nil {
			slog.Error("failed to collect pending notification metrics", "error", err)
			return
		}
		for channel, n := range counts {
			ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue, float64(n), channel)
		}
	}
}

var initOnce sync.Once

// Init registers the collector and counters with the default registry.
// Must be called once at startup.
func Init(alerts AlertSource, pending PendingSource) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			NewCrisisCollector(alerts, pending),
			classificationsTotal,
			enqueuedTotal,
			dispatchedTotal,
		)
	})
}

// RecordClassification counts one classify call by resulting level.
func RecordClassification(level string) {
	if level == "" {
		level = "none"
	}
	classificationsTotal.WithLabelValues(level).Inc()
}

// RecordEnqueue counts one per-channel enqueue result.
func RecordEnqueue(channel, status string) {
	enqueuedTotal.WithLabelValues(channel, status).Inc()
}

// RecordDispatch counts one dispatch outcome.
func RecordDispatch(channel, status string) {
	dispatchedTotal.WithLabelValues(channel, status).Inc()
}

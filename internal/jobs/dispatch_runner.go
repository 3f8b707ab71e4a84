package jobs

import (
	"context"
	"log/slog"
	"time"

	"carealert/internal/models"
)

// PendingDispatcher delivers a batch of pending notifications.
type PendingDispatcher interface {
	DispatchPending(ctx context.Context, limit int, dryRun bool) ([]models.DispatchOutcome, error)
}

// DispatchRunner periodically delivers pending notifications.
type DispatchRunner struct {
	dispatcher PendingDispatcher
	interval   time.Duration
	batchSize  int
}

// NewDispatchRunner creates a new dispatch runner.
func NewDispatchRunner(dispatcher PendingDispatcher, interval time.Duration, batchSize int) *DispatchRunner {
	return &DispatchRunner{
		dispatcher: dispatcher,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start runs the dispatch loop until ctx is cancelled.
func (r *DispatchRunner) Start(ctx context.Context) {
	slog.Info("dispatch runner started", "interval", r.interval, "batch_size", r.batchSize)

	// Run immediately on start
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch runner stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce dispatches one batch and logs a per-status summary.
func (r *DispatchRunner) runOnce(ctx context.Context) map[string]int {
	outcomes, err := r.dispatcher.DispatchPending(ctx, r.batchSize, false)
	if err != nil {
		slog.Error("dispatch runner: failed to dispatch batch", "error", err)
		return nil
	}
	if len(outcomes) == 0 {
		return nil
	}

	summary := make(map[string]int)
	for _, o := range outcomes {
		summary[o.Status]++
	}

	level := slog.LevelInfo
	if summary[models.OutcomeFailed] > 0 {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "dispatch runner: batch processed",
		"processed", len(outcomes),
		"sent", summary[models.OutcomeSent],
		"failed", summary[models.OutcomeFailed],
		"skipped", summary[models.OutcomeSkipped])

	return summary
}

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"carealert/internal/contact"
	"carealert/internal/metrics"
	"carealert/internal/models"
)

// Batch size bounds for DispatchPending.
const (
	DefaultBatchSize = 25
	MaxBatchSize     = 100
)

// Sender delivers a message through one external provider.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Dispatcher delivers pending notification records.
type Dispatcher struct {
	store       Store
	resolver    *contact.Resolver
	senders     map[string]Sender
	sendTimeout time.Duration
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. A nil sender leaves that channel
// unconfigured; its records are skipped and stay pending.
func NewDispatcher(store Store, resolver *contact.Resolver, email, sms Sender, sendTimeout time.Duration) *Dispatcher {
	senders := make(map[string]Sender, 2)
	if email != nil {
		senders[models.ChannelEmail] = email
	}
	if sms != nil {
		senders[models.ChannelSMS] = sms
	}
	return &Dispatcher{
		store:       store,
		resolver:    resolver,
		senders:     senders,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// ClampBatchSize maps limit into [1, MaxBatchSize], using DefaultBatchSize
// for non-positive values.
func ClampBatchSize(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	if limit > MaxBatchSize {
		return MaxBatchSize
	}
	return limit
}

// Channels lists the channels this dispatcher can deliver: in_app plus every
// channel with a configured sender. Records on other channels stay pending
// and are not fetched.
func (d *Dispatcher) Channels() []string {
	channels := make([]string, 0, len(d.senders)+1)
	channels = append(channels, models.ChannelInApp)
	for ch := range d.senders {
		channels = append(channels, ch)
	}
	sort.Strings(channels[1:])
	return channels
}

// DispatchPending processes up to limit pending records on deliverable
// channels and returns one outcome per record in fetch order. Records that
// failed before are fetched after fresh ones, so a run of undeliverable
// records cannot hold back newer work. Records are handled sequentially.
// Only a failure to fetch the batch is returned as an error. With dryRun set
// nothing is sent and nothing is written.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int, dryRun bool) ([]models.DispatchOutcome, error) {
	pending, err := d.store.ListPendingNotifications(ctx, d.Channels(), ClampBatchSize(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}

	run := d.resolver.NewRun()
	outcomes := make([]models.DispatchOutcome, 0, len(pending))

	for i := range pending {
		// Stop between records; records already sent stay marked.
		if ctx.Err() != nil {
			slog.Warn("dispatch batch interrupted", "processed", len(outcomes), "remaining", len(pending)-len(outcomes))
			break
		}

		n := &pending[i]
		var o models.DispatchOutcome
		if dryRun {
			o = d.preview(ctx, run, n)
		} else {
			o = d.dispatch(ctx, run, n)
			metrics.RecordDispatch(n.Channel, o.Status)
			if o.Status == models.OutcomeFailed {
				d.recordAttempt(ctx, n)
			}
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, run *contact.Run, n *models.Notification) models.DispatchOutcome {
	out := models.DispatchOutcome{ID: n.ID, Channel: n.Channel}

	switch n.Channel {
	case models.ChannelInApp:
		// In-app records are delivered once they are visible to the user.
	case models.ChannelEmail, models.ChannelSMS:
		sender, ok := d.senders[n.Channel]
		if !ok {
			out.Status = models.OutcomeSkipped
			out.Reason = fmt.Sprintf("%s %v", n.Channel, ErrProviderNotConfigured)
			return out
		}

		recipient, err := d.recipient(ctx, run, n)
		if err != nil {
			slog.Warn("notification has no deliverable address",
				"notification_id", n.ID, "user_id", n.UserID, "channel", n.Channel, "error", err)
			out.Status = models.OutcomeFailed
			out.Reason = err.Error()
			return out
		}

		if err := d.send(ctx, sender, recipient, n); err != nil {
			slog.Error("notification delivery failed",
				"notification_id", n.ID, "channel", n.Channel, "error", err)
			out.Status = models.OutcomeFailed
			out.Reason = err.Error()
			return out
		}
	default:
		out.Status = models.OutcomeSkipped
		out.Reason = "unknown channel " + n.Channel
		return out
	}

	if err := d.store.MarkNotificationSent(ctx, n.ID, d.now().UTC()); err != nil {
		// Delivered but not recorded: the record will be sent again.
		slog.Error("failed to mark notification sent",
			"notification_id", n.ID, "channel", n.Channel, "error", err)
		out.Status = models.OutcomeFailed
		out.Reason = "mark sent: " + err.Error()
		return out
	}

	out.Status = models.OutcomeSent
	return out
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, recipient string, n *models.Notification) error {
	sendCtx := ctx
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	if err := sender.Send(sendCtx, recipient, n.Title, n.Message); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

func (d *Dispatcher) recordAttempt(ctx context.Context, n *models.Notification) {
	if err := d.store.RecordDeliveryAttempt(ctx, n.ID); err != nil {
		slog.Warn("failed to record delivery attempt", "notification_id", n.ID, "error", err)
	}
}

// recipient resolves the address for the record's channel.
func (d *Dispatcher) recipient(ctx context.Context, run *contact.Run, n *models.Notification) (string, error) {
	profile, err := run.Resolve(ctx, n.UserID)
	if err != nil {
		return "", err
	}

	var addr string
	if n.Channel == models.ChannelEmail {
		addr = profile.Email
	} else {
		addr = profile.Phone
	}
	if addr == "" {
		return "", ErrMissingContact
	}
	return addr, nil
}

// preview reports what dispatch would do without sending or writing.
func (d *Dispatcher) preview(ctx context.Context, run *contact.Run, n *models.Notification) models.DispatchOutcome {
	out := models.DispatchOutcome{ID: n.ID, Channel: n.Channel, Status: models.OutcomeDryRun}

	switch n.Channel {
	case models.ChannelInApp:
		out.Reason = "would mark delivered"
	case models.ChannelEmail, models.ChannelSMS:
		if _, ok := d.senders[n.Channel]; !ok {
			out.Reason = fmt.Sprintf("would skip: %s %v", n.Channel, ErrProviderNotConfigured)
			return out
		}
		if _, err := d.recipient(ctx, run, n); err != nil {
			out.Reason = "would fail: " + err.Error()
			return out
		}
		out.Reason = "would send via " + n.Channel
	default:
		out.Reason = "would skip: unknown channel " + n.Channel
	}
	return out
}

// Package notify turns domain events into per-channel notification records
// and delivers pending records through provider adapters.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"carealert/internal/contact"
	"carealert/internal/db"
	"carealert/internal/metrics"
	"carealert/internal/models"
	"carealert/internal/validation"
)

// Store is the notification record store shared by the enqueuer and dispatcher.
type Store interface {
	// NotificationExists reports whether a notification of the given type
	// already references source for this user, on any channel.
	NotificationExists(ctx context.Context, userID uuid.UUID, notificationType string, source models.SourceEntity) (bool, error)
	// CreateNotification inserts n. It returns an error wrapping
	// db.ErrDuplicateNotification on a uniqueness violation.
	CreateNotification(ctx context.Context, n *models.Notification) error
	// ListPendingNotifications returns up to limit undelivered records on the
	// given channels, fewest failed attempts first, then oldest first.
	ListPendingNotifications(ctx context.Context, channels []string, limit int) ([]models.Notification, error)
	// MarkNotificationSent sets sent_at on a pending record.
	MarkNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	// RecordDeliveryAttempt counts one failed delivery of a pending record.
	RecordDeliveryAttempt(ctx context.Context, id uuid.UUID) error
}

// Publisher pushes newly created notifications to connected clients.
// Implementations must not block the caller.
type Publisher interface {
	Publish(n *models.Notification)
}

type noopPublisher struct{}

func (noopPublisher) Publish(*models.Notification) {}

var typePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// EnqueueRequest describes one event to notify a user about.
type EnqueueRequest struct {
	UserID uuid.UUID
	Type   string
	Source models.SourceEntity
	Data   map[string]any // extra payload, e.g. starts_at for reminders
}

func (r EnqueueRequest) validate() error {
	fields := map[string]string{}
	if r.UserID == uuid.Nil {
		fields["userId"] = "is required"
	}
	if !typePattern.MatchString(r.Type) {
		fields["type"] = "must be a lowercase identifier"
	}
	if strings.TrimSpace(r.Source.Type) == "" {
		fields["sourceEntity.type"] = "is required"
	}
	if strings.TrimSpace(r.Source.ID) == "" {
		fields["sourceEntity.id"] = "is required"
	}
	if len(fields) > 0 {
		return &validation.Error{Fields: fields}
	}
	return nil
}

// Enqueuer creates one notification record per eligible channel for an event.
type Enqueuer struct {
	store     Store
	resolver  *contact.Resolver
	messages  *Messages
	publisher Publisher
	now       func() time.Time
}

// NewEnqueuer creates an enqueuer. publisher may be nil.
func NewEnqueuer(store Store, resolver *contact.Resolver, messages *Messages, publisher Publisher) *Enqueuer {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Enqueuer{
		store:     store,
		resolver:  resolver,
		messages:  messages,
		publisher: publisher,
		now:       time.Now,
	}
}

// Enqueue notifies one user about one event using a fresh contact run.
func (e *Enqueuer) Enqueue(ctx context.Context, req EnqueueRequest) (*models.EnqueueResponse, error) {
	return e.enqueue(ctx, e.resolver.NewRun(), req)
}

// BatchItem is the result of one request within EnqueueBatch.
type BatchItem struct {
	Request EnqueueRequest
	Result  *models.EnqueueResponse
	Err     error
}

// EnqueueBatch enqueues every request, sharing one contact run.
// A failing request is reported in its item and does not stop the batch.
func (e *Enqueuer) EnqueueBatch(ctx context.Context, reqs []EnqueueRequest) []BatchItem {
	run := e.resolver.NewRun()
	items := make([]BatchItem, 0, len(reqs))
	for _, req := range reqs {
		res, err := e.enqueue(ctx, run, req)
		items = append(items, BatchItem{Request: req, Result: res, Err: err})
	}
	return items
}

func (e *Enqueuer) enqueue(ctx context.Context, run *contact.Run, req EnqueueRequest) (*models.EnqueueResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	exists, err := e.store.NotificationExists(ctx, req.UserID, req.Type, req.Source)
	if err != nil {
		return nil, fmt.Errorf("check existing notifications: %w", err)
	}
	if exists {
		slog.Debug("notification already enqueued for source",
			"user_id", req.UserID, "type", req.Type, "source_type", req.Source.Type, "source_id", req.Source.ID)
		return &models.EnqueueResponse{Duplicate: true, PerChannelResult: []models.ChannelResult{}}, nil
	}

	resp := &models.EnqueueResponse{PerChannelResult: []models.ChannelResult{}}

	profile, err := run.Resolve(ctx, req.UserID)
	if err != nil {
		slog.Warn("contact resolution failed, notifying in-app only",
			"user_id", req.UserID, "type", req.Type, "error", err)
	} else {
		resp.ContactResolved = true
	}

	for _, channel := range SelectChannels(profile) {
		result := e.createForChannel(ctx, req, channel)
		if result.Status == models.ChannelCreated {
			resp.ChannelsCreated++
		}
		metrics.RecordEnqueue(channel, result.Status)
		resp.PerChannelResult = append(resp.PerChannelResult, result)
	}

	return resp, nil
}

func (e *Enqueuer) createForChannel(ctx context.Context, req EnqueueRequest, channel string) models.ChannelResult {
	title, message := e.messages.Render(req.Type, channel, req.Data)

	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      req.Type,
		Channel:   channel,
		Title:     title,
		Message:   message,
		Payload:   buildPayload(req),
		CreatedAt: e.now().UTC(),
	}

	if err := e.store.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, db.ErrDuplicateNotification) {
			return models.ChannelResult{Channel: channel, Status: models.ChannelSkipped, Reason: "duplicate"}
		}
		slog.Error("failed to create notification",
			"user_id", req.UserID, "type", req.Type, "channel", channel, "error", err)
		return models.ChannelResult{Channel: channel, Status: models.ChannelFailed, Reason: err.Error()}
	}

	e.publisher.Publish(n)

	id := n.ID
	return models.ChannelResult{Channel: channel, Status: models.ChannelCreated, NotificationID: &id}
}

func buildPayload(req EnqueueRequest) map[string]any {
	payload := make(map[string]any, len(req.Data)+2)
	for k, v := range req.Data {
		payload[k] = v
	}
	payload[models.PayloadSourceType] = req.Source.Type
	payload[models.PayloadSourceID] = req.Source.ID
	return payload
}

// SelectChannels applies the channel policy for a resolved profile.
// in_app is always first. A nil profile yields in_app only.
func SelectChannels(p *models.ContactProfile) []string {
	channels := []string{models.ChannelInApp}
	if p == nil {
		return channels
	}

	switch p.PreferredChannel {
	case models.ContactEmail:
		if p.HasEmail() {
			channels = append(channels, models.ChannelEmail)
		}
	case models.ContactPhone:
		if p.HasPhone() {
			channels = append(channels, models.ChannelSMS)
		}
	case models.ContactAnonymous:
	default:
		if p.HasEmail() {
			channels = append(channels, models.ChannelEmail)
		} else if p.HasPhone() {
			channels = append(channels, models.ChannelSMS)
		}
	}
	return channels
}

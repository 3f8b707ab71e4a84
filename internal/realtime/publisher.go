// Package realtime pushes newly created in-app notifications to Redis
// pub/sub so connected clients can show them without polling.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"carealert/internal/models"
)

const publishTimeout = 2 * time.Second

// Channel returns the pub/sub channel for a user's notifications.
func Channel(userID uuid.UUID) string {
	return "carealert:notifications:" + userID.String()
}

type event struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher publishes in-app notifications. Publish never blocks the caller;
// failures are logged and dropped since the record is already stored.
type Publisher struct {
	rdb redis.UniversalClient
	wg  sync.WaitGroup
}

func NewPublisher(rdb redis.UniversalClient) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends n to the user's channel in the background.
// Records for other channels are ignored.
func (p *Publisher) Publish(n *models.Notification) {
	if n.Channel != models.ChannelInApp {
		return
	}

	payload, err := json.Marshal(event{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		slog.Error("failed to encode realtime event", "notification_id", n.ID, "error", err)
		return
	}

	channel := Channel(n.UserID)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			slog.Warn("realtime publish failed", "notification_id", n.ID, "error", err)
		}
	}()
}

// Close waits for in-flight publishes.
func (p *Publisher) Close() {
	p.wg.Wait()
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery channel constants
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Notification type constants
const (
	NotificationCrisisAlert         = "crisis_alert"
	NotificationAppointmentReminder = "appointment_reminder"
	NotificationCheckInReminder     = "check_in_reminder"
)

// Payload keys that identify the source entity of a notification.
const (
	PayloadSourceType = "source_type"
	PayloadSourceID   = "source_id"
)

// SourceEntity is the domain object that triggered a notification.
// Together with the user and notification type it forms the dedup key.
type SourceEntity struct {
	Type string `json:"type" validate:"required,max=64"`
	ID   string `json:"id" validate:"required,max=128"`
}

// Notification is a single per-channel delivery record.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	SentAt    *time.Time     `json:"sent_at"`
	Attempts  int            `json:"attempts"` // failed delivery attempts
}

// IsPending returns true if the notification has not been delivered yet.
func (n *Notification) IsPending() bool {
	return n.SentAt == nil
}

// Source returns the source entity recorded in the payload.
func (n *Notification) Source() SourceEntity {
	var s SourceEntity
	if v, ok := n.Payload[PayloadSourceType].(string); ok {
		s.Type = v
	}
	if v, ok := n.Payload[PayloadSourceID].(string); ok {
		s.ID = v
	}
	return s
}

// IsValidChannel reports whether channel is a known delivery channel.
func IsValidChannel(channel string) bool {
	return channel == ChannelInApp || channel == ChannelEmail || channel == ChannelSMS
}

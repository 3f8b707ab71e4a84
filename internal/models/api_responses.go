package models

import "github.com/google/uuid"

// CrisisMetrics is the point-in-time alert summary shown on dashboards.
type CrisisMetrics struct {
	TotalAlerts            int     `json:"totalAlerts"`
	ActiveAlerts           int     `json:"activeAlerts"`
	AvgResponseTimeMinutes float64 `json:"avgResponseTimeMinutes"`
	ResolutionRatePercent  int     `json:"resolutionRatePercent"`
	WeeklyTrendPercent     float64 `json:"weeklyTrendPercent"`
}

// ChannelResult reports what happened to one channel during enqueue.
type ChannelResult struct {
	Channel        string     `json:"channel"`
	Status         string     `json:"status"` // created, failed, skipped
	NotificationID *uuid.UUID `json:"notificationId,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// EnqueueResponse is returned by the enqueue-notification endpoint.
type EnqueueResponse struct {
	ChannelsCreated  int             `json:"channelsCreated"`
	Duplicate        bool            `json:"duplicate"`
	ContactResolved  bool            `json:"contactResolved"`
	PerChannelResult []ChannelResult `json:"perChannelResult"`
}

// DispatchOutcome reports what happened to one pending notification.
type DispatchOutcome struct {
	ID      uuid.UUID `json:"id"`
	Channel string    `json:"channel"`
	Status  string    `json:"status"` // sent, failed, skipped, dry-run
	Reason  string    `json:"reason,omitempty"`
}

// DispatchResponse is returned by the dispatch-pending endpoint.
type DispatchResponse struct {
	ProcessedCount int               `json:"processedCount"`
	Results        []DispatchOutcome `json:"results"`
}

// ScreenResponse is returned by the screening endpoint.
type ScreenResponse struct {
	Event        CrisisEvent      `json:"event"`
	Alert        *CrisisAlert     `json:"alert,omitempty"`
	Notification *EnqueueResponse `json:"notification,omitempty"`
}

// Channel result statuses
const (
	ChannelCreated = "created"
	ChannelFailed  = "failed"
	ChannelSkipped = "skipped"
)

// Dispatch outcome statuses
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeDryRun  = "dry-run"
)

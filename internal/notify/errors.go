package notify

import "errors"

// Per-record failure causes. They are reported in outcomes, never returned
// for a whole batch.
var (
	ErrDelivery              = errors.New("delivery failed")
	ErrMissingContact        = errors.New("missing contact")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

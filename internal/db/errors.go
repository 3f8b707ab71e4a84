package db

import "errors"

// Domain-level database error sentinels.
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Alert errors
	ErrAlertNotFound = errors.New("alert not found")
	ErrAlertConflict = errors.New("alert status changed concurrently")

	// Notification errors
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrDuplicateNotification = errors.New("notification already exists for this source")
)

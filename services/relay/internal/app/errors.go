package app

import "errors"

var (
	// ErrCodeNotFound is returned when the scanned code is unknown or has no
	// phone number on record yet. The message is user-visible.
	ErrCodeNotFound = errors.New("QR code not found or not configured")

	ErrMissingFields = errors.New("Missing code or message")

	// ErrQueueUnavailable wraps backend failures; handlers map it to a
	// generic 500 so queue internals never leak to scan-page visitors.
	ErrQueueUnavailable = errors.New("Failed to queue message")
)

package repository

import "errors"

// Store error kinds.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEvent = errors.New("duplicate telemetry event")
	ErrClosed         = errors.New("store closed")
)

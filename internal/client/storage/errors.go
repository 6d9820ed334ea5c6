package storage

import "errors"

// Common client storage errors
var (
	// ErrBookingNotFound indicates that booking was not found
	ErrBookingNotFound = errors.New("booking not found")

	// ErrMetaNotFound indicates that sync metadata for booking was not found
	ErrMetaNotFound = errors.New("sync metadata not found")

	// ErrOperationNotFound indicates that no outbox operation exists for booking
	ErrOperationNotFound = errors.New("outbox operation not found")

	// ErrConflictNotFound indicates that conflict record was not found
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrSessionNotFound indicates that no session data exists
	ErrSessionNotFound = errors.New("session not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)

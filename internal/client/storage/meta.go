package storage

import (
	"context"
	"time"
)

// LocalMeta хранит состояние синхронизации одного бронирования.
// Инвариант: IsPending == true тогда и только тогда, когда в outbox есть
// операция для этого BookingID. Расхождение чинится orphan cleanup
// в конце цикла синхронизации.
type LocalMeta struct {
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	LocalUpdatedAt time.Time  `json:"local_updated_at"`
	BookingID      string     `json:"booking_id"`
	IsPending      bool       `json:"is_pending"`
	IsConflict     bool       `json:"is_conflict"`
}

// MetaStorage defines interface for per-booking sync metadata
type MetaStorage interface {
	// SaveMeta stores or replaces sync metadata for a booking
	SaveMeta(ctx context.Context, meta *LocalMeta) error

	// GetMeta retrieves sync metadata by booking ID
	// Returns ErrMetaNotFound if no metadata exists
	GetMeta(ctx context.Context, bookingID string) (*LocalMeta, error)

	// ListMeta returns metadata for all known bookings
	ListMeta(ctx context.Context) ([]*LocalMeta, error)

	// DeleteMeta removes sync metadata for a booking
	// Deleting missing metadata is not an error
	DeleteMeta(ctx context.Context, bookingID string) error
}

package storage

import (
	"context"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
)

// ConflictResolution represents how a conflict was resolved
type ConflictResolution string

const (
	ResolutionLocal  ConflictResolution = "local"  // локальная версия перезаписывает удаленную
	ResolutionRemote ConflictResolution = "remote" // принимается удаленная версия
	ResolutionMerged ConflictResolution = "merged" // вручную слитая версия
)

// Conflict хранит пару снимков, разошедшихся при optimistic concurrency
// проверке: локальная правка была построена поверх устаревшей версии.
// Запись создается движком синхронизации и ждет ручного разрешения.
type Conflict struct {
	DetectedAt   time.Time          `json:"detected_at"`
	ResolvedAt   *time.Time         `json:"resolved_at,omitempty"`
	LocalRecord  *models.Booking    `json:"local_record"`
	RemoteRecord *models.Booking    `json:"remote_record"`
	ConflictID   string             `json:"conflict_id"`
	BookingID    string             `json:"booking_id"`
	Resolution   ConflictResolution `json:"resolution,omitempty"`
}

// Resolved сообщает, было ли разрешение уже зафиксировано.
func (c *Conflict) Resolved() bool {
	return c.Resolution != ""
}

// ConflictStorage defines interface for storing unresolved edit conflicts
type ConflictStorage interface {
	// SaveConflict stores or replaces a conflict record
	SaveConflict(ctx context.Context, conflict *Conflict) error

	// GetConflict retrieves a conflict by its ID
	// Returns ErrConflictNotFound if conflict doesn't exist
	GetConflict(ctx context.Context, conflictID string) (*Conflict, error)

	// ListConflicts returns all unresolved conflicts, ordered by DetectedAt ascending
	ListConflicts(ctx context.Context) ([]*Conflict, error)

	// GetConflictsByBooking returns all conflicts (resolved and not) for a booking
	GetConflictsByBooking(ctx context.Context, bookingID string) ([]*Conflict, error)

	// DeleteConflict removes a conflict record
	DeleteConflict(ctx context.Context, conflictID string) error
}

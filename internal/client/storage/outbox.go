package storage

import (
	"context"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
)

// OpKind represents the kind of pending mutation
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// OpStatus represents the lifecycle state of an outbox operation
type OpStatus string

const (
	StatusPending OpStatus = "pending"
	StatusSyncing OpStatus = "syncing"
	StatusFailed  OpStatus = "failed"
)

// OutboxOperation описывает одну неподтвержденную локальную мутацию.
// На каждый BookingID существует не более одной операции: Enqueue
// в пакете outbox сливает последовательные правки в одну.
//
// BaseVersion — удаленный UpdatedAt, поверх которого была сделана
// ПЕРВАЯ несинхронизированная правка. Coalescing не трогает это поле,
// иначе проверка optimistic concurrency на сервере была бы некорректной.
type OutboxOperation struct {
	CreatedAt      time.Time       `json:"created_at"`
	LastModifiedAt time.Time       `json:"last_modified_at"`
	BaseVersion    time.Time       `json:"base_version"`
	Payload        *models.Booking `json:"payload,omitempty"`
	OpID           string          `json:"op_id"` // OpID idempotency-токен операции (UUID)
	BookingID      string          `json:"booking_id"`
	Kind           OpKind          `json:"kind"`
	Status         OpStatus        `json:"status"`
	LastError      string          `json:"last_error,omitempty"`
	RetryCount     int             `json:"retry_count"`
}

// OutboxStorage defines interface for the per-booking operation queue
type OutboxStorage interface {
	// SaveOperation stores or replaces the operation for op.BookingID
	SaveOperation(ctx context.Context, op *OutboxOperation) error

	// GetOperation retrieves the operation for a booking
	// Returns ErrOperationNotFound if none exists
	GetOperation(ctx context.Context, bookingID string) (*OutboxOperation, error)

	// PendingOperations returns operations with status Pending or Failed,
	// ordered by CreatedAt ascending (oldest first)
	PendingOperations(ctx context.Context) ([]*OutboxOperation, error)

	// ListOperations returns all operations regardless of status,
	// ordered by CreatedAt ascending
	ListOperations(ctx context.Context) ([]*OutboxOperation, error)

	// DeleteOperation removes the operation for a booking
	// Deleting a missing operation is not an error
	DeleteOperation(ctx context.Context, bookingID string) error
}

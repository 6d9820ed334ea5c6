// Package outbox реализует очередь неподтвержденных локальных мутаций:
// не более одной операции на бронирование. Enqueue — единственная точка
// записи, она сливает последовательные правки (coalescing), сохраняя
// итоговое намерение пользователя одной сетевой операцией.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/models"
)

// Queue управляет outbox-операциями поверх клиентского хранилища
type Queue struct {
	bookings storage.BookingStorage
	meta     storage.MetaStorage
	ops      storage.OutboxStorage
	logger   *slog.Logger
}

// NewQueue creates a new outbox queue
func NewQueue(
	bookings storage.BookingStorage,
	meta storage.MetaStorage,
	ops storage.OutboxStorage,
	logger *slog.Logger,
) *Queue {
	return &Queue{
		bookings: bookings,
		meta:     meta,
		ops:      ops,
		logger:   logger,
	}
}

// Enqueue сливает входящую мутацию с существующей операцией для того же
// бронирования. Таблица coalescing (существующая -> входящая -> результат):
//
//	Create + Update -> Create (слитый payload), baseVersion без изменений
//	Create + Delete -> полная элизия: удаляются операция, бронирование и meta
//	                   (кроме Create в статусе Syncing — тогда Delete)
//	Update + Update -> Update (слитый payload), baseVersion без изменений
//	Update + Delete -> Delete, baseVersion без изменений
//	(нет)  + любая  -> новая операция со свежим opId
//
// baseVersion всегда отражает версию, поверх которой была построена ПЕРВАЯ
// несинхронизированная правка — иначе optimistic concurrency проверка
// на сервере была бы некорректной.
//
// Возвращает elided=true, если пара Create+Delete аннигилировала и локальная
// запись удалена целиком.
func (q *Queue) Enqueue(ctx context.Context, kind storage.OpKind, snapshot *models.Booking, baseVersion time.Time) (elided bool, err error) {
	bookingID := snapshot.ID
	now := time.Now()

	existing, err := q.ops.GetOperation(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, storage.ErrOperationNotFound) {
			return false, fmt.Errorf("failed to get existing operation: %w", err)
		}

		// Нет существующей операции: новая строка со свежим opId
		// Payload у delete хранит последний локальный снимок:
		// он нужен для фиксации конфликта при 409
		op := &storage.OutboxOperation{
			OpID:           uuid.New().String(),
			BookingID:      bookingID,
			Kind:           kind,
			Payload:        snapshot.Clone(),
			BaseVersion:    baseVersion,
			CreatedAt:      now,
			LastModifiedAt: now,
			Status:         storage.StatusPending,
		}
		if err := q.ops.SaveOperation(ctx, op); err != nil {
			return false, fmt.Errorf("failed to save operation: %w", err)
		}
		return false, nil
	}

	merged, elide, err := coalesce(existing, kind, snapshot)
	if err != nil {
		return false, err
	}

	if elide {
		// Create+Delete до первой синхронизации: сервер никогда не видел
		// эту запись, убираем все локальные следы
		if err := q.ops.DeleteOperation(ctx, bookingID); err != nil {
			return false, fmt.Errorf("failed to delete operation: %w", err)
		}
		if err := q.bookings.DeleteBooking(ctx, bookingID); err != nil {
			return false, fmt.Errorf("failed to delete booking: %w", err)
		}
		if err := q.meta.DeleteMeta(ctx, bookingID); err != nil {
			return false, fmt.Errorf("failed to delete meta: %w", err)
		}
		q.logger.Debug("Elided create+delete pair", "booking_id", bookingID)
		return true, nil
	}

	merged.LastModifiedAt = now
	if err := q.ops.SaveOperation(ctx, merged); err != nil {
		return false, fmt.Errorf("failed to save coalesced operation: %w", err)
	}

	return false, nil
}

// Pending returns operations awaiting sync (Pending or Failed), oldest first
func (q *Queue) Pending(ctx context.Context) ([]*storage.OutboxOperation, error) {
	ops, err := q.ops.PendingOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operations: %w", err)
	}
	return ops, nil
}

// coalesce применяет таблицу слияния к паре (существующая, входящая).
// Мутирует и возвращает existing; elide=true означает аннигиляцию пары.
func coalesce(existing *storage.OutboxOperation, kind storage.OpKind, snapshot *models.Booking) (*storage.OutboxOperation, bool, error) {
	switch existing.Kind {
	case storage.OpCreate:
		switch kind {
		case storage.OpUpdate:
			// Create + Update -> Create со слитым payload
			existing.Payload = models.MergeBooking(existing.Payload, snapshot)
			existing.Status = storage.StatusPending
			return existing, false, nil
		case storage.OpDelete:
			if existing.Status == storage.StatusSyncing {
				// Create уже в полете: сервер мог успеть применить его,
				// элизия потеряла бы удаление. Превращаем в Delete —
				// удаление несуществующей записи сервер считает успехом.
				existing.Kind = storage.OpDelete
				existing.Status = storage.StatusPending
				return existing, false, nil
			}
			return nil, true, nil
		}
	case storage.OpUpdate:
		switch kind {
		case storage.OpUpdate:
			// Update + Update -> Update; baseVersion сохраняет версию
			// до первой локальной правки
			existing.Payload = models.MergeBooking(existing.Payload, snapshot)
			existing.Status = storage.StatusPending
			return existing, false, nil
		case storage.OpDelete:
			existing.Kind = storage.OpDelete
			existing.Status = storage.StatusPending
			return existing, false, nil
		}
	case storage.OpDelete:
		if kind == storage.OpDelete {
			// Повторное удаление идемпотентно
			return existing, false, nil
		}
	}

	return nil, false, fmt.Errorf("invalid operation transition: %s + %s for booking %s",
		existing.Kind, kind, snapshot.ID)
}

// Package booking — локальный write API: фасад, через который остальное
// приложение создает, меняет и читает бронирования. Записи сначала
// попадают в локальное хранилище, затем в outbox; сеть — забота движка
// синхронизации.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/bookkeeper/internal/client/outbox"
	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/models"
	"github.com/iudanet/bookkeeper/internal/validation"
)

// Trigger запрашивает фоновую синхронизацию после локальной записи
type Trigger interface {
	RequestSync()
}

// OnlineChecker сообщает текущий статус сети
type OnlineChecker interface {
	IsOnline() bool
}

// Service определяет локальный write API
type Service interface {
	// Create создает бронирование; ID генерируется клиентом
	Create(ctx context.Context, b *models.Booking) (*models.Booking, error)

	// Update применяет частичное изменение
	Update(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error)

	// Delete удаляет бронирование через coalescing-путь outbox
	Delete(ctx context.Context, id string) error

	// Get возвращает бронирование по ID
	Get(ctx context.Context, id string) (*models.Booking, error)

	// List возвращает бронирования по фильтру
	List(ctx context.Context, filter *storage.ListFilter) ([]*models.Booking, error)

	// AddPayment добавляет платежную запись (append-only ledger)
	AddPayment(ctx context.Context, bookingID string, payment models.PaymentEntry) (*models.Booking, error)

	// RemovePayment убирает платежную запись по entry id
	RemovePayment(ctx context.Context, bookingID, entryID string) (*models.Booking, error)

	// PendingCount возвращает число несинхронизированных операций
	PendingCount(ctx context.Context) (int, error)

	// Conflicts возвращает неразрешенные конфликты
	Conflicts(ctx context.Context) ([]*storage.Conflict, error)

	// ResolveConflict фиксирует разрешение конфликта
	ResolveConflict(ctx context.Context, conflictID string, resolution storage.ConflictResolution, merged *models.Booking) error
}

// service handles local booking writes with outbox enqueueing
type service struct {
	storeMu   *gosync.Mutex
	bookings  storage.BookingStorage
	meta      storage.MetaStorage
	conflicts storage.ConflictStorage
	queue     *outbox.Queue
	trigger   Trigger
	online    OnlineChecker
	logger    *slog.Logger
}

// NewService creates a new booking write service.
// trigger и online могут быть nil (например, в одноразовых CLI-командах).
// storeMu — тот же лок, что у движка синхронизации: логическая
// транзакция записи (снимок + meta + outbox) атомарна относительно
// reconcile.
func NewService(
	storeMu *gosync.Mutex,
	bookings storage.BookingStorage,
	meta storage.MetaStorage,
	conflicts storage.ConflictStorage,
	queue *outbox.Queue,
	trigger Trigger,
	online OnlineChecker,
	logger *slog.Logger,
) Service {
	return &service{
		storeMu:   storeMu,
		bookings:  bookings,
		meta:      meta,
		conflicts: conflicts,
		queue:     queue,
		trigger:   trigger,
		online:    online,
		logger:    logger,
	}
}

// Create creates a booking locally and enqueues a Create operation
func (s *service) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	// Генерируем ID если не задан: идемпотентность создания
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	if err := validation.ValidateBooking(b); err != nil {
		return nil, err
	}

	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	// baseVersion для Create не используется сервером, но нулевое
	// значение однозначно помечает "записи на сервере еще нет"
	if err := s.persistWrite(ctx, b, storage.OpCreate, time.Time{}); err != nil {
		return nil, err
	}

	s.triggerIfOnline()
	return b.Clone(), nil
}

// Update applies a partial change and enqueues an Update operation
func (s *service) Update(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error) {
	if err := validation.ValidatePatch(patch); err != nil {
		return nil, err
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	// Версия ДО этой правки: для свежей outbox-строки это последняя
	// синхронизированная (удаленная) версия; при coalescing существующая
	// строка сохраняет свой baseVersion
	baseVersion := b.UpdatedAt

	patch.Apply(b)
	if err := validation.ValidateBooking(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now()

	if err := s.persistWrite(ctx, b, storage.OpUpdate, baseVersion); err != nil {
		return nil, err
	}

	s.triggerIfOnline()
	return b.Clone(), nil
}

// Delete enqueues deletion through the outbox coalescing path.
// Локально бронирование исчезает сразу; meta остается pending до
// подтверждения сервером (или элидируется вместе с Create).
func (s *service) Delete(ctx context.Context, id string) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get booking: %w", err)
	}

	baseVersion := b.UpdatedAt

	elided, err := s.queue.Enqueue(ctx, storage.OpDelete, b, baseVersion)
	if err != nil {
		return fmt.Errorf("failed to enqueue delete: %w", err)
	}
	if elided {
		// Create+Delete аннигилировали: запись и meta уже удалены
		return nil
	}

	if err := s.bookings.DeleteBooking(ctx, id); err != nil {
		return fmt.Errorf("failed to delete booking locally: %w", err)
	}
	if err := s.upsertPendingMeta(ctx, id, time.Now()); err != nil {
		return err
	}

	s.triggerIfOnline()
	return nil
}

// Get returns a booking by ID
func (s *service) Get(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// List returns bookings matching the filter
func (s *service) List(ctx context.Context, filter *storage.ListFilter) ([]*models.Booking, error) {
	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// AddPayment appends a payment entry to the booking's ledger
func (s *service) AddPayment(ctx context.Context, bookingID string, payment models.PaymentEntry) (*models.Booking, error) {
	if err := validation.ValidatePayment(payment); err != nil {
		return nil, err
	}

	// Локально сгенерированный id делает повторное применение идемпотентным
	if payment.EntryID == "" {
		payment.EntryID = uuid.New().String()
	}
	if payment.RecordedAt.IsZero() {
		payment.RecordedAt = time.Now()
	}

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if b.HasPayment(payment.EntryID) {
		// Повторное применение того же платежа — no-op
		return b, nil
	}

	baseVersion := b.UpdatedAt
	b.Payments = append(b.Payments, payment)
	b.UpdatedAt = time.Now()

	if err := s.persistWrite(ctx, b, storage.OpUpdate, baseVersion); err != nil {
		return nil, err
	}

	s.triggerIfOnline()
	return b.Clone(), nil
}

// RemovePayment removes a payment entry by its id
func (s *service) RemovePayment(ctx context.Context, bookingID, entryID string) (*models.Booking, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if !b.HasPayment(entryID) {
		return nil, fmt.Errorf("payment entry %s not found in booking %s", entryID, bookingID)
	}

	baseVersion := b.UpdatedAt
	filtered := b.Payments[:0]
	for _, p := range b.Payments {
		if p.EntryID != entryID {
			filtered = append(filtered, p)
		}
	}
	b.Payments = filtered
	b.UpdatedAt = time.Now()

	if err := s.persistWrite(ctx, b, storage.OpUpdate, baseVersion); err != nil {
		return nil, err
	}

	s.triggerIfOnline()
	return b.Clone(), nil
}

// PendingCount returns the number of unsynced operations
func (s *service) PendingCount(ctx context.Context) (int, error) {
	ops, err := s.queue.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// Conflicts returns unresolved conflicts for display/resolution
func (s *service) Conflicts(ctx context.Context) ([]*storage.Conflict, error) {
	conflicts, err := s.conflicts.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return conflicts, nil
}

// ResolveConflict фиксирует выбранное разрешение конфликта:
//
//	local  — локальная версия снова ставится в очередь поверх удаленной
//	remote — принимается удаленная версия
//	merged — принимается переданная вручную слитая версия
func (s *service) ResolveConflict(ctx context.Context, conflictID string, resolution storage.ConflictResolution, merged *models.Booking) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	conflict, err := s.conflicts.GetConflict(ctx, conflictID)
	if err != nil {
		return fmt.Errorf("failed to get conflict: %w", err)
	}
	if conflict.Resolved() {
		return fmt.Errorf("conflict %s is already resolved", conflictID)
	}

	var chosen *models.Booking
	switch resolution {
	case storage.ResolutionLocal:
		chosen = conflict.LocalRecord.Clone()
	case storage.ResolutionRemote:
		chosen = conflict.RemoteRecord.Clone()
	case storage.ResolutionMerged:
		if merged == nil {
			return fmt.Errorf("merged resolution requires a merged record")
		}
		if err := validation.ValidateBooking(merged); err != nil {
			return err
		}
		chosen = merged.Clone()
	default:
		return fmt.Errorf("unknown resolution: %s", resolution)
	}

	if resolution == storage.ResolutionRemote {
		// Принимаем удаленную версию как синхронизированную
		if err := s.bookings.SaveBooking(ctx, chosen); err != nil {
			return fmt.Errorf("failed to save remote record: %w", err)
		}
		now := time.Now()
		if err := s.meta.SaveMeta(ctx, &storage.LocalMeta{
			BookingID:      chosen.ID,
			LastSyncedAt:   &now,
			LocalUpdatedAt: chosen.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("failed to update meta: %w", err)
		}
	} else {
		// Локальная или слитая версия отправляется на сервер поверх
		// текущей удаленной: baseVersion = версия из конфликта
		chosen.UpdatedAt = time.Now()
		if err := s.persistWrite(ctx, chosen, storage.OpUpdate, conflict.RemoteRecord.UpdatedAt); err != nil {
			return err
		}
	}

	now := time.Now()
	conflict.Resolution = resolution
	conflict.ResolvedAt = &now
	if err := s.conflicts.SaveConflict(ctx, conflict); err != nil {
		return fmt.Errorf("failed to save resolved conflict: %w", err)
	}

	s.triggerIfOnline()
	return nil
}

// persistWrite выполняет контракт локальной записи: снимок + meta + outbox.
// Вызывается под storeMu.
func (s *service) persistWrite(ctx context.Context, b *models.Booking, kind storage.OpKind, baseVersion time.Time) error {
	if err := s.bookings.SaveBooking(ctx, b); err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	if err := s.upsertPendingMeta(ctx, b.ID, b.UpdatedAt); err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, kind, b, baseVersion); err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return nil
}

// upsertPendingMeta помечает бронирование как несинхронизированное
func (s *service) upsertPendingMeta(ctx context.Context, bookingID string, localUpdatedAt time.Time) error {
	meta, err := s.meta.GetMeta(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, storage.ErrMetaNotFound) {
			return fmt.Errorf("failed to get meta: %w", err)
		}
		meta = &storage.LocalMeta{BookingID: bookingID}
	}

	meta.IsPending = true
	meta.LocalUpdatedAt = localUpdatedAt

	if err := s.meta.SaveMeta(ctx, meta); err != nil {
		return fmt.Errorf("failed to save meta: %w", err)
	}
	return nil
}

// triggerIfOnline запрашивает фоновую синхронизацию после записи
func (s *service) triggerIfOnline() {
	if s.trigger == nil {
		return
	}
	if s.online != nil && !s.online.IsOnline() {
		return
	}
	s.trigger.RequestSync()
}

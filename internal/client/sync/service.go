// Package sync реализует цикл синхронизации: дренаж outbox против
// удаленного сервиса, полный reconcile коллекции (обнаружение удалений
// без changelog) и очистку устаревших локальных флагов.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	httpClient "github.com/iudanet/bookkeeper/internal/client/api"
	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/legacy"
	"github.com/iudanet/bookkeeper/internal/models"
)

// maxRetries — предел автоматических повторов для изолированных
// (не фатальных для цикла) ошибок операции
const maxRetries = 5

// ErrSyncInProgress возвращается при повторном триггере во время
// выполняющегося цикла; вызывающий код проглатывает его (single-flight)
var ErrSyncInProgress = errors.New("sync already in progress")

// Service определяет интерфейс движка синхронизации
type Service interface {
	// Sync выполняет один полный цикл синхронизации
	Sync(ctx context.Context) (*Result, error)

	// PendingCount возвращает количество операций, ожидающих отправки
	PendingCount(ctx context.Context) (int, error)
}

// Result contains sync cycle results
type Result struct {
	Pushed    int // операций подтверждено сервером
	Conflicts int // зафиксировано конфликтов версий
	Failed    int // операций помечено Failed
	Pulled    int // записей применено из удаленной коллекции
	Deleted   int // локальных записей удалено (удаление на сервере)
	Skipped   int // сырых записей пропущено (ошибка нормализации)
}

// service orchestrates sync cycles against the remote service
type service struct {
	storeMu   *gosync.Mutex
	apiClient httpClient.ClientAPI
	bookings  storage.BookingStorage
	meta      storage.MetaStorage
	ops       storage.OutboxStorage
	conflicts storage.ConflictStorage
	state     storage.SyncStateStorage
	normalize legacy.NormalizeFunc
	logger    *slog.Logger
	running   atomic.Bool
}

// NewService creates a new sync engine.
// storeMu — общий лок логических транзакций хранилища: его же держит
// локальный write API, чтобы правка во время reconcile не потерялась.
func NewService(
	storeMu *gosync.Mutex,
	apiClient httpClient.ClientAPI,
	bookings storage.BookingStorage,
	meta storage.MetaStorage,
	ops storage.OutboxStorage,
	conflicts storage.ConflictStorage,
	state storage.SyncStateStorage,
	normalize legacy.NormalizeFunc,
	logger *slog.Logger,
) Service {
	if normalize == nil {
		normalize = legacy.Normalize
	}
	return &service{
		storeMu:   storeMu,
		apiClient: apiClient,
		bookings:  bookings,
		meta:      meta,
		ops:       ops,
		conflicts: conflicts,
		state:     state,
		normalize: normalize,
		logger:    logger,
	}
}

// Sync performs one full sync cycle:
// 1. Reset stale failures (retryCount < maxRetries back to Pending)
// 2. Drain outbox sequentially, oldest first
// 3. Full reconcile against the remote collection
// 4. Orphan cleanup of stale pending flags
// 5. Update sync state
func (s *service) Sync(ctx context.Context) (*Result, error) {
	// Single-flight: повторный триггер во время цикла — no-op
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	s.logger.Info("Starting sync cycle")
	now := time.Now()

	if err := s.saveState(ctx, func(st *storage.SyncState) {
		st.LastSyncAttemptAt = &now
		st.SyncInProgress = true
	}); err != nil {
		return nil, err
	}

	result := &Result{}

	if err := s.resetStaleFailures(ctx); err != nil {
		s.clearInProgress(ctx)
		return nil, err
	}

	if err := s.drainOutbox(ctx, result); err != nil {
		s.clearInProgress(ctx)
		return nil, err
	}

	if err := s.reconcile(ctx, result); err != nil {
		// Reconcile идемпотентен: следующий цикл сойдется к тому же
		// состоянию, частично примененные эффекты безопасны
		s.clearInProgress(ctx)
		return nil, fmt.Errorf("reconcile failed: %w", err)
	}

	if err := s.cleanupOrphans(ctx); err != nil {
		s.clearInProgress(ctx)
		return nil, fmt.Errorf("orphan cleanup failed: %w", err)
	}

	done := time.Now()
	if err := s.saveState(ctx, func(st *storage.SyncState) {
		st.LastFullSyncAt = &done
		st.SyncInProgress = false
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Sync cycle completed",
		"pushed", result.Pushed,
		"conflicts", result.Conflicts,
		"failed", result.Failed,
		"pulled", result.Pulled,
		"deleted", result.Deleted,
		"skipped", result.Skipped)

	return result, nil
}

// PendingCount возвращает количество операций со статусом Pending или Failed
func (s *service) PendingCount(ctx context.Context) (int, error) {
	ops, err := s.ops.PendingOperations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending operations: %w", err)
	}
	return len(ops), nil
}

// resetStaleFailures возвращает Failed-операции с исчерпанным не до конца
// лимитом повторов обратно в Pending
func (s *service) resetStaleFailures(ctx context.Context) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	ops, err := s.ops.ListOperations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	for _, op := range ops {
		if op.Status == storage.StatusFailed && op.RetryCount < maxRetries {
			op.Status = storage.StatusPending
			if err := s.ops.SaveOperation(ctx, op); err != nil {
				return fmt.Errorf("failed to reset operation %s: %w", op.OpID, err)
			}
		}
		// Зависший Syncing — процесс умер посреди прошлого цикла;
		// возвращаем в Pending, idempotency-ключ защитит от дублей
		if op.Status == storage.StatusSyncing {
			op.Status = storage.StatusPending
			if err := s.ops.SaveOperation(ctx, op); err != nil {
				return fmt.Errorf("failed to reset stuck operation %s: %w", op.OpID, err)
			}
		}
	}

	return nil
}

// drainOutbox отправляет операции последовательно, старейшие первыми.
// Последовательность сохраняет порядок между записями и делает семантику
// stop-on-error однозначной.
func (s *service) drainOutbox(ctx context.Context, result *Result) error {
	pending, err := s.ops.PendingOperations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending operations: %w", err)
	}

	for _, candidate := range pending {
		if candidate.Status != storage.StatusPending {
			// Failed с исчерпанным лимитом повторов ждут ручного вмешательства
			continue
		}

		op, ok, err := s.markSyncing(ctx, candidate.BookingID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		stop := s.submitOperation(ctx, op, result)
		if stop {
			break
		}
	}

	return nil
}

// markSyncing перечитывает операцию под локом и помечает ее Syncing.
// Снимок из PendingOperations мог устареть: конкурентная правка могла
// слить в строку новый payload, и запись устаревшего снимка потеряла бы
// его. Возвращает ok=false, если строка исчезла или больше не Pending.
func (s *service) markSyncing(ctx context.Context, bookingID string) (*storage.OutboxOperation, bool, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	op, err := s.ops.GetOperation(ctx, bookingID)
	if err != nil {
		if errors.Is(err, storage.ErrOperationNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get operation for %s: %w", bookingID, err)
	}
	if op.Status != storage.StatusPending {
		return nil, false, nil
	}

	op.Status = storage.StatusSyncing
	if err := s.ops.SaveOperation(ctx, op); err != nil {
		return nil, false, fmt.Errorf("failed to mark operation syncing: %w", err)
	}
	return op, true, nil
}

// requeuedSince сообщает, была ли строка outbox переписана конкурентной
// правкой после отправки снимка submitted: coalescing возвращает статус
// в Pending и двигает LastModifiedAt
func requeuedSince(submitted, current *storage.OutboxOperation) bool {
	return current.Status != storage.StatusSyncing ||
		!current.LastModifiedAt.Equal(submitted.LastModifiedAt)
}

// submitOperation отправляет одну операцию и применяет результат.
// Возвращает true, если дренаж надо остановить (auth или transport ошибка).
func (s *service) submitOperation(ctx context.Context, op *storage.OutboxOperation, result *Result) bool {
	var (
		raw json.RawMessage
		err error
	)

	switch op.Kind {
	case storage.OpCreate:
		raw, err = s.apiClient.CreateBooking(ctx, op.OpID, op.Payload)
	case storage.OpUpdate:
		raw, err = s.apiClient.UpdateBooking(ctx, op.OpID, op.Payload, op.BaseVersion)
	case storage.OpDelete:
		err = s.apiClient.DeleteBooking(ctx, op.OpID, op.BookingID, op.BaseVersion)
	default:
		err = fmt.Errorf("unknown operation kind: %s", op.Kind)
	}

	if err == nil {
		if applyErr := s.applySuccess(ctx, op, raw); applyErr != nil {
			s.logger.Error("Failed to apply sync success", "booking_id", op.BookingID, "error", applyErr)
			s.markFailed(ctx, op, applyErr, false)
			result.Failed++
			return false
		}
		result.Pushed++
		return false
	}

	// Классифицируем ошибку
	var conflictErr *httpClient.VersionConflictError
	var transportErr *httpClient.TransportError

	switch {
	case errors.As(err, &conflictErr):
		// Конфликт версий: фиксируем пару снимков, не повторяем
		if capErr := s.captureConflict(ctx, op, conflictErr.Current); capErr != nil {
			s.logger.Error("Failed to capture conflict", "booking_id", op.BookingID, "error", capErr)
			s.markFailed(ctx, op, capErr, false)
			result.Failed++
			return false
		}
		result.Conflicts++
		return false

	case errors.Is(err, httpClient.ErrUnauthorized):
		// Остальные операции тоже были бы отклонены — останавливаем дренаж
		s.logger.Warn("Auth error, stopping drain", "booking_id", op.BookingID)
		s.markFailed(ctx, op, err, false)
		result.Failed++
		return true

	case errors.As(err, &transportErr):
		// Связь пропала посреди цикла — останавливаем дренаж
		s.logger.Warn("Transport error, stopping drain", "booking_id", op.BookingID, "error", err)
		s.markFailed(ctx, op, err, false)
		result.Failed++
		return true

	default:
		// Изолированная ошибка: не блокируем соседние операции
		s.logger.Warn("Operation failed", "booking_id", op.BookingID, "error", err)
		s.markFailed(ctx, op, err, true)
		result.Failed++
		return false
	}
}

// applySuccess применяет канонический ответ сервера и снимает операцию.
// Строка перечитывается под локом: если конкурентная правка успела слиться
// в нее во время сетевого запроса, снять ее нельзя — вместо этого строка
// перебазируется на только что созданную сервером версию и остается Pending.
func (s *service) applySuccess(ctx context.Context, op *storage.OutboxOperation, raw json.RawMessage) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	now := time.Now()

	if op.Kind == storage.OpDelete {
		// Единственный допустимый coalesce поверх Delete — повторный
		// Delete, он ничего не добавляет: убираем все остатки
		if err := s.bookings.DeleteBooking(ctx, op.BookingID); err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		if err := s.meta.DeleteMeta(ctx, op.BookingID); err != nil {
			return fmt.Errorf("failed to delete meta: %w", err)
		}
		if err := s.ops.DeleteOperation(ctx, op.BookingID); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}
		return nil
	}

	canonical, err := s.normalize(raw)
	if err != nil {
		return fmt.Errorf("failed to normalize canonical response: %w", err)
	}

	current, err := s.ops.GetOperation(ctx, op.BookingID)
	if err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		return fmt.Errorf("failed to reread operation: %w", err)
	}

	if current != nil && requeuedSince(op, current) {
		// Локальная правка слилась в строку, пока запрос был в полете.
		// Сервер принял СТАРЫЙ payload: перебазируем строку на новую
		// серверную версию, не трогая локальную запись и pending-флаг.
		// Свежий opId обязателен — старый сервер уже учел, и replay
		// вернул бы устаревший ответ вместо применения правки.
		current.OpID = uuid.New().String()
		current.BaseVersion = canonical.UpdatedAt
		if current.Kind == storage.OpCreate {
			// Запись теперь существует на сервере
			current.Kind = storage.OpUpdate
		}
		if err := s.ops.SaveOperation(ctx, current); err != nil {
			return fmt.Errorf("failed to rebase requeued operation: %w", err)
		}
		s.logger.Info("Operation requeued during submit, rebased",
			"booking_id", op.BookingID, "op_id", current.OpID)
		return nil
	}

	if err := s.bookings.SaveBooking(ctx, canonical); err != nil {
		return fmt.Errorf("failed to save canonical booking: %w", err)
	}
	if err := s.meta.SaveMeta(ctx, &storage.LocalMeta{
		BookingID:      op.BookingID,
		IsPending:      false,
		IsConflict:     false,
		LastSyncedAt:   &now,
		LocalUpdatedAt: canonical.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("failed to update meta: %w", err)
	}
	if err := s.ops.DeleteOperation(ctx, op.BookingID); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}

	return nil
}

// captureConflict создает запись конфликта и снимает операцию с повтора
func (s *service) captureConflict(ctx context.Context, op *storage.OutboxOperation, currentRaw json.RawMessage) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	remote, err := s.normalize(currentRaw)
	if err != nil {
		return fmt.Errorf("failed to normalize remote record: %w", err)
	}

	// Локальная сторона конфликта — свежайший снимок: правка, слитая в
	// строку во время запроса, должна попасть в конфликт, а не пропасть
	local := op.Payload
	if latest, err := s.ops.GetOperation(ctx, op.BookingID); err == nil {
		local = latest.Payload
	} else if !errors.Is(err, storage.ErrOperationNotFound) {
		return fmt.Errorf("failed to reread operation: %w", err)
	}

	conflict := &storage.Conflict{
		ConflictID:   uuid.New().String(),
		BookingID:    op.BookingID,
		LocalRecord:  local,
		RemoteRecord: remote,
		DetectedAt:   time.Now(),
	}
	if err := s.conflicts.SaveConflict(ctx, conflict); err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}

	meta := &storage.LocalMeta{
		BookingID:  op.BookingID,
		IsPending:  false,
		IsConflict: true,
	}
	if existing, err := s.meta.GetMeta(ctx, op.BookingID); err == nil {
		meta = existing
		meta.IsPending = false
		meta.IsConflict = true
	}
	if err := s.meta.SaveMeta(ctx, meta); err != nil {
		return fmt.Errorf("failed to mark conflict meta: %w", err)
	}

	// Операция не повторяется: конфликт ждет ручного разрешения
	if err := s.ops.DeleteOperation(ctx, op.BookingID); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}

	s.logger.Info("Conflict captured",
		"booking_id", op.BookingID,
		"conflict_id", conflict.ConflictID)

	return nil
}

// markFailed помечает операцию Failed; incrementRetry — только для
// изолированных ошибок, фатальные для цикла классы повторяются бесплатно.
// Строка перечитывается под локом: запись устаревшего снимка поверх
// строки, переписанной конкурентной правкой, потеряла бы ее payload.
func (s *service) markFailed(ctx context.Context, op *storage.OutboxOperation, cause error, incrementRetry bool) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	current, err := s.ops.GetOperation(ctx, op.BookingID)
	if err != nil {
		if !errors.Is(err, storage.ErrOperationNotFound) {
			s.logger.Error("Failed to reread operation", "booking_id", op.BookingID, "error", err)
		}
		return
	}
	if requeuedSince(op, current) {
		// Переписанная строка уже Pending — она сама пойдет в следующий
		// дренаж, отметка о провале старого снимка ей не нужна
		return
	}

	current.Status = storage.StatusFailed
	current.LastError = cause.Error()
	if incrementRetry {
		current.RetryCount++
	}
	if err := s.ops.SaveOperation(ctx, current); err != nil {
		s.logger.Error("Failed to mark operation failed", "booking_id", op.BookingID, "error", err)
	}
}

// reconcile сверяет полную удаленную коллекцию с локальной.
// Удаления распространяются без changelog: локальная запись, отсутствующая
// на сервере и не pending, считается удаленной удаленно.
func (s *service) reconcile(ctx context.Context, result *Result) error {
	raws, err := s.apiClient.FetchBookings(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote collection: %w", err)
	}

	remoteIDs := make(map[string]bool, len(raws))

	for _, raw := range raws {
		remote, err := s.normalize(raw)
		if err != nil {
			// Изолированный сбой нормализации не валит весь reconcile
			s.logger.Warn("Failed to normalize remote record, skipping", "error", err)
			result.Skipped++
			continue
		}
		remoteIDs[remote.ID] = true

		applied, err := s.applyRemote(ctx, remote)
		if err != nil {
			return err
		}
		if applied {
			result.Pulled++
		}
	}

	deleted, err := s.sweepDeleted(ctx, remoteIDs)
	if err != nil {
		return err
	}
	result.Deleted += deleted

	return nil
}

// applyRemote применяет одну удаленную запись под локом хранилища.
// Pending-записи пропускаются: несинхронизированная локальная правка
// никогда не затирается. isPending перечитывается на каждой записи,
// а не снимком на весь reconcile — локальная правка может прийти
// между записями.
func (s *service) applyRemote(ctx context.Context, remote *models.Booking) (bool, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	meta, err := s.meta.GetMeta(ctx, remote.ID)
	if err != nil && !errors.Is(err, storage.ErrMetaNotFound) {
		return false, fmt.Errorf("failed to get meta for %s: %w", remote.ID, err)
	}
	if meta != nil && meta.IsPending {
		return false, nil
	}

	local, err := s.bookings.GetBooking(ctx, remote.ID)
	if err != nil && !errors.Is(err, storage.ErrBookingNotFound) {
		return false, fmt.Errorf("failed to get local booking %s: %w", remote.ID, err)
	}

	// Применяем, если записи нет локально или удаленная не старее.
	// При равных timestamp предпочитаем удаленную: детерминированно
	// и идемпотентно при расхождении часов.
	if local != nil && remote.UpdatedAt.Before(local.UpdatedAt) {
		return false, nil
	}

	if err := s.bookings.SaveBooking(ctx, remote); err != nil {
		return false, fmt.Errorf("failed to save remote booking %s: %w", remote.ID, err)
	}

	now := time.Now()
	newMeta := &storage.LocalMeta{
		BookingID:      remote.ID,
		LastSyncedAt:   &now,
		LocalUpdatedAt: remote.UpdatedAt,
	}
	if meta != nil {
		newMeta.IsConflict = meta.IsConflict
	}
	if err := s.meta.SaveMeta(ctx, newMeta); err != nil {
		return false, fmt.Errorf("failed to save meta for %s: %w", remote.ID, err)
	}

	return true, nil
}

// sweepDeleted удаляет локальные записи, отсутствующие в удаленной
// коллекции и не имеющие несинхронизированных правок или конфликтов
func (s *service) sweepDeleted(ctx context.Context, remoteIDs map[string]bool) (int, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	locals, err := s.bookings.ListBookings(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list local bookings: %w", err)
	}

	deleted := 0
	for _, local := range locals {
		if remoteIDs[local.ID] {
			continue
		}

		meta, err := s.meta.GetMeta(ctx, local.ID)
		if err != nil && !errors.Is(err, storage.ErrMetaNotFound) {
			return deleted, fmt.Errorf("failed to get meta for %s: %w", local.ID, err)
		}
		if meta != nil && meta.IsPending {
			// Несинхронизированная локальная запись — не трогаем
			continue
		}
		if meta != nil && meta.IsConflict {
			// Запись под неразрешенным конфликтом не выдергиваем
			continue
		}

		if err := s.bookings.DeleteBooking(ctx, local.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete booking %s: %w", local.ID, err)
		}
		if err := s.meta.DeleteMeta(ctx, local.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete meta %s: %w", local.ID, err)
		}

		s.logger.Debug("Remote deletion propagated", "booking_id", local.ID)
		deleted++
	}

	return deleted, nil
}

// cleanupOrphans сбрасывает IsPending у записей без outbox-операции:
// флаг устарел (операция уже подтверждена или элидирована)
func (s *service) cleanupOrphans(ctx context.Context) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	metas, err := s.meta.ListMeta(ctx)
	if err != nil {
		return fmt.Errorf("failed to list meta: %w", err)
	}

	for _, meta := range metas {
		if !meta.IsPending {
			continue
		}

		_, err := s.ops.GetOperation(ctx, meta.BookingID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrOperationNotFound) {
			return fmt.Errorf("failed to check operation for %s: %w", meta.BookingID, err)
		}

		meta.IsPending = false
		if err := s.meta.SaveMeta(ctx, meta); err != nil {
			return fmt.Errorf("failed to clear stale pending flag for %s: %w", meta.BookingID, err)
		}
		s.logger.Debug("Cleared stale pending flag", "booking_id", meta.BookingID)
	}

	return nil
}

// saveState читает, модифицирует и сохраняет singleton-состояние
func (s *service) saveState(ctx context.Context, mutate func(*storage.SyncState)) error {
	st, err := s.state.GetSyncState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync state: %w", err)
	}
	mutate(st)
	if err := s.state.SaveSyncState(ctx, st); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// clearInProgress снимает флаг выполняющегося цикла при аборте.
// Ошибка здесь только логируется: исходная ошибка цикла важнее.
func (s *service) clearInProgress(ctx context.Context) {
	if err := s.saveState(ctx, func(st *storage.SyncState) {
		st.SyncInProgress = false
	}); err != nil {
		s.logger.Error("Failed to clear sync-in-progress flag", "error", err)
	}
}

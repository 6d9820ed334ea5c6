package booking

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookkeeper/internal/client/outbox"
	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/bookkeeper/internal/models"
	"github.com/iudanet/bookkeeper/internal/validation"
)

type triggerMock struct {
	mu    gosync.Mutex
	calls int
}

func (m *triggerMock) RequestSync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *triggerMock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type onlineMock bool

func (m onlineMock) IsOnline() bool { return bool(m) }

func newTestService(t *testing.T, trigger Trigger, online OnlineChecker) (Service, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "booking_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := outbox.NewQueue(store, store, store, logger)

	var storeMu gosync.Mutex
	svc := NewService(&storeMu, store, store, store, queue, trigger, online, logger)
	return svc, store
}

func newBooking() *models.Booking {
	return &models.Booking{
		CustomerName: "Anna",
		Service:      "haircut",
		StartsAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:       time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		PriceCents:   150000,
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	trigger := &triggerMock{}
	svc, store := newTestService(t, trigger, onlineMock(true))

	created, err := svc.Create(ctx, newBooking())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// Локальная запись, meta и outbox-операция созданы
	got, err := store.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", got.CustomerName)

	meta, err := store.GetMeta(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, meta.IsPending)

	op, err := store.GetOperation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.OpCreate, op.Kind)
	assert.True(t, op.BaseVersion.IsZero())

	assert.Equal(t, 1, trigger.Calls())
}

func TestService_CreateInvalid(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil)

	b := newBooking()
	b.CustomerName = ""
	_, err := svc.Create(ctx, b)
	assert.ErrorIs(t, err, validation.ErrValidation)
}

func TestService_OfflineEditsProduceSingleOperation(t *testing.T) {
	ctx := context.Background()
	trigger := &triggerMock{}
	svc, store := newTestService(t, trigger, onlineMock(false))

	created, err := svc.Create(ctx, newBooking())
	require.NoError(t, err)

	name := "Anna Ivanova"
	_, err = svc.Update(ctx, created.ID, models.BookingPatch{CustomerName: &name})
	require.NoError(t, err)

	price := int64(200000)
	_, err = svc.Update(ctx, created.ID, models.BookingPatch{PriceCents: &price})
	require.NoError(t, err)

	// Три локальные мутации — одна Create-операция со слитым payload
	pending, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	op, err := store.GetOperation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.OpCreate, op.Kind)
	assert.Equal(t, "Anna Ivanova", op.Payload.CustomerName)
	assert.Equal(t, int64(200000), op.Payload.PriceCents)

	// Офлайн: триггер не дергается
	assert.Equal(t, 0, trigger.Calls())
}

func TestService_UpdateBaseVersion(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	// Синхронизированная запись с серверной версией
	serverVersion := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	b := newBooking()
	b.ID = "b-1"
	b.UpdatedAt = serverVersion
	require.NoError(t, store.SaveBooking(ctx, b))

	name := "Anna Ivanova"
	_, err := svc.Update(ctx, "b-1", models.BookingPatch{CustomerName: &name})
	require.NoError(t, err)

	// baseVersion = версия записи до первой несинхронизированной правки
	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.OpUpdate, op.Kind)
	assert.True(t, serverVersion.Equal(op.BaseVersion))

	// Повторная правка не сдвигает baseVersion
	price := int64(1)
	_, err = svc.Update(ctx, "b-1", models.BookingPatch{PriceCents: &price})
	require.NoError(t, err)

	op, err = store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, serverVersion.Equal(op.BaseVersion))
}

func TestService_DeleteSyncedBooking(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	serverVersion := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	b := newBooking()
	b.ID = "b-1"
	b.UpdatedAt = serverVersion
	require.NoError(t, store.SaveBooking(ctx, b))

	require.NoError(t, svc.Delete(ctx, "b-1"))

	// Запись удалена локально; delete-операция ждет отправки
	_, err := store.GetBooking(ctx, "b-1")
	assert.ErrorIs(t, err, storage.ErrBookingNotFound)

	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.OpDelete, op.Kind)
	assert.True(t, serverVersion.Equal(op.BaseVersion))

	meta, err := store.GetMeta(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, meta.IsPending)
}

func TestService_DeleteUnsyncedBooking_Elides(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	created, err := svc.Create(ctx, newBooking())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	// Create+Delete аннигилировали: следов не осталось
	_, err = store.GetOperation(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	_, err = store.GetMeta(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrMetaNotFound)

	pending, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestService_AddPayment(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	created, err := svc.Create(ctx, newBooking())
	require.NoError(t, err)

	updated, err := svc.AddPayment(ctx, created.ID, models.PaymentEntry{
		AmountCents: 50000,
		Method:      "cash",
	})
	require.NoError(t, err)
	require.Len(t, updated.Payments, 1)
	assert.NotEmpty(t, updated.Payments[0].EntryID)
	assert.False(t, updated.Payments[0].RecordedAt.IsZero())

	// Платеж попал в payload outbox-операции
	op, err := store.GetOperation(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, op.Payload.Payments, 1)
}

func TestService_RemovePayment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil)

	created, err := svc.Create(ctx, newBooking())
	require.NoError(t, err)

	updated, err := svc.AddPayment(ctx, created.ID, models.PaymentEntry{
		AmountCents: 50000,
		Method:      "cash",
	})
	require.NoError(t, err)
	entryID := updated.Payments[0].EntryID

	after, err := svc.RemovePayment(ctx, created.ID, entryID)
	require.NoError(t, err)
	assert.Empty(t, after.Payments)

	_, err = svc.RemovePayment(ctx, created.ID, "missing")
	assert.Error(t, err)
}

func TestService_ResolveConflictRemote(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	local := newBooking()
	local.ID = "b-1"
	local.CustomerName = "Local"
	remote := newBooking()
	remote.ID = "b-1"
	remote.CustomerName = "Remote"
	remote.UpdatedAt = time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveBooking(ctx, local))
	require.NoError(t, store.SaveMeta(ctx, &storage.LocalMeta{BookingID: "b-1", IsConflict: true}))
	require.NoError(t, store.SaveConflict(ctx, &storage.Conflict{
		ConflictID:   "c-1",
		BookingID:    "b-1",
		LocalRecord:  local,
		RemoteRecord: remote,
		DetectedAt:   time.Now(),
	}))

	require.NoError(t, svc.ResolveConflict(ctx, "c-1", storage.ResolutionRemote, nil))

	// Принята удаленная версия, конфликт закрыт
	got, err := store.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Remote", got.CustomerName)

	conflict, err := store.GetConflict(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, conflict.Resolved())
	assert.Equal(t, storage.ResolutionRemote, conflict.Resolution)

	// Повторное разрешение — ошибка
	assert.Error(t, svc.ResolveConflict(ctx, "c-1", storage.ResolutionRemote, nil))
}

func TestService_ResolveConflictLocal_Requeues(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	local := newBooking()
	local.ID = "b-1"
	local.CustomerName = "Local"
	remote := newBooking()
	remote.ID = "b-1"
	remote.CustomerName = "Remote"
	remote.UpdatedAt = time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveBooking(ctx, remote))
	require.NoError(t, store.SaveConflict(ctx, &storage.Conflict{
		ConflictID:   "c-1",
		BookingID:    "b-1",
		LocalRecord:  local,
		RemoteRecord: remote,
		DetectedAt:   time.Now(),
	}))

	require.NoError(t, svc.ResolveConflict(ctx, "c-1", storage.ResolutionLocal, nil))

	// Локальная версия снова в очереди поверх текущей удаленной
	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.OpUpdate, op.Kind)
	assert.Equal(t, "Local", op.Payload.CustomerName)
	assert.True(t, remote.UpdatedAt.Equal(op.BaseVersion))
}

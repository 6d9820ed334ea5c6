package outbox

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/bookkeeper/internal/models"
)

func newTestQueue(t *testing.T) (*Queue, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "outbox_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQueue(store, store, store, logger), store
}

func snapshot(id, customer string) *models.Booking {
	return &models.Booking{
		ID:           id,
		CustomerName: customer,
		Service:      "haircut",
		StartsAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestQueue_EnqueueNewOperation(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	baseVersion := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	elided, err := queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Anna"), baseVersion)
	require.NoError(t, err)
	assert.False(t, elided)

	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.NotEmpty(t, op.OpID)
	assert.Equal(t, storage.OpUpdate, op.Kind)
	assert.Equal(t, storage.StatusPending, op.Status)
	assert.True(t, baseVersion.Equal(op.BaseVersion))
	assert.Equal(t, "Anna", op.Payload.CustomerName)
}

func TestQueue_CreateThenUpdate_CoalescesToCreate(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	_, err := queue.Enqueue(ctx, storage.OpCreate, snapshot("b-1", "Anna"), time.Time{})
	require.NoError(t, err)

	first, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)

	_, err = queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Anna Updated"), time.Time{})
	require.NoError(t, err)

	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)

	// Остается Create: сервер эту запись еще не видел
	assert.Equal(t, storage.OpCreate, op.Kind)
	assert.Equal(t, "Anna Updated", op.Payload.CustomerName)
	// opId сохраняется: idempotency-токен операции стабилен
	assert.Equal(t, first.OpID, op.OpID)
}

func TestQueue_CreateThenDelete_Elides(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	b := snapshot("b-1", "Anna")
	require.NoError(t, store.SaveBooking(ctx, b))
	require.NoError(t, store.SaveMeta(ctx, &storage.LocalMeta{BookingID: "b-1", IsPending: true}))

	_, err := queue.Enqueue(ctx, storage.OpCreate, b, time.Time{})
	require.NoError(t, err)

	elided, err := queue.Enqueue(ctx, storage.OpDelete, b, time.Time{})
	require.NoError(t, err)
	assert.True(t, elided)

	// Все локальные следы исчезли
	_, err = store.GetOperation(ctx, "b-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	_, err = store.GetBooking(ctx, "b-1")
	assert.ErrorIs(t, err, storage.ErrBookingNotFound)
	_, err = store.GetMeta(ctx, "b-1")
	assert.ErrorIs(t, err, storage.ErrMetaNotFound)
}

func TestQueue_SyncingCreateThenDelete_BecomesDelete(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	b := snapshot("b-1", "Anna")
	require.NoError(t, store.SaveBooking(ctx, b))
	require.NoError(t, store.SaveMeta(ctx, &storage.LocalMeta{BookingID: "b-1", IsPending: true}))

	_, err := queue.Enqueue(ctx, storage.OpCreate, b, time.Time{})
	require.NoError(t, err)

	// Create уходит в сеть
	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	op.Status = storage.StatusSyncing
	require.NoError(t, store.SaveOperation(ctx, op))

	// Элизия недопустима: сервер может успеть применить Create
	elided, err := queue.Enqueue(ctx, storage.OpDelete, b, time.Time{})
	require.NoError(t, err)
	assert.False(t, elided)

	op, err = store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.OpDelete, op.Kind)
	assert.Equal(t, storage.StatusPending, op.Status)
}

func TestQueue_UpdateThenUpdate_KeepsBaseVersion(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	baseVersion := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	_, err := queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "First"), baseVersion)
	require.NoError(t, err)

	// Вторая правка построена поверх локального состояния; baseVersion
	// остается версией до ПЕРВОЙ правки
	laterVersion := baseVersion.Add(time.Hour)
	_, err = queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Second"), laterVersion)
	require.NoError(t, err)

	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.OpUpdate, op.Kind)
	assert.Equal(t, "Second", op.Payload.CustomerName)
	assert.True(t, baseVersion.Equal(op.BaseVersion))
}

func TestQueue_UpdateThenDelete_BecomesDelete(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	baseVersion := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	_, err := queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Anna"), baseVersion)
	require.NoError(t, err)

	elided, err := queue.Enqueue(ctx, storage.OpDelete, snapshot("b-1", "Anna"), baseVersion.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, elided)

	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.OpDelete, op.Kind)
	assert.True(t, baseVersion.Equal(op.BaseVersion))
}

func TestQueue_FailedOperationResetsToPending(t *testing.T) {
	ctx := context.Background()
	queue, store := newTestQueue(t)

	_, err := queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Anna"), time.Time{})
	require.NoError(t, err)

	// Операция упала при прошлой синхронизации
	op, err := store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	op.Status = storage.StatusFailed
	op.RetryCount = 2
	require.NoError(t, store.SaveOperation(ctx, op))

	// Новая локальная правка возвращает операцию в Pending
	_, err = queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Anna 2"), time.Time{})
	require.NoError(t, err)

	op, err = store.GetOperation(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPending, op.Status)
}

func TestQueue_DeleteThenUpdate_Invalid(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t)

	_, err := queue.Enqueue(ctx, storage.OpDelete, snapshot("b-1", "Anna"), time.Time{})
	require.NoError(t, err)

	_, err = queue.Enqueue(ctx, storage.OpUpdate, snapshot("b-1", "Anna"), time.Time{})
	assert.Error(t, err)
}

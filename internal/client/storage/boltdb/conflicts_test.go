package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/models"
)

func makeConflict(conflictID, bookingID string, detectedAt time.Time) *storage.Conflict {
	return &storage.Conflict{
		ConflictID:   conflictID,
		BookingID:    bookingID,
		LocalRecord:  &models.Booking{ID: bookingID, CustomerName: "local"},
		RemoteRecord: &models.Booking{ID: bookingID, CustomerName: "remote"},
		DetectedAt:   detectedAt,
	}
}

func TestStorage_SaveGetConflict(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.GetConflict(ctx, "c-1")
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)

	c := makeConflict("c-1", "b-1", time.Now())
	require.NoError(t, store.SaveConflict(ctx, c))

	got, err := store.GetConflict(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "b-1", got.BookingID)
	assert.Equal(t, "local", got.LocalRecord.CustomerName)
	assert.Equal(t, "remote", got.RemoteRecord.CustomerName)
	assert.False(t, got.Resolved())
}

func TestStorage_ListConflicts_UnresolvedOnly(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveConflict(ctx, makeConflict("c-2", "b-2", base.Add(time.Hour))))
	require.NoError(t, store.SaveConflict(ctx, makeConflict("c-1", "b-1", base)))

	resolved := makeConflict("c-3", "b-3", base.Add(2*time.Hour))
	now := time.Now()
	resolved.Resolution = storage.ResolutionRemote
	resolved.ResolvedAt = &now
	require.NoError(t, store.SaveConflict(ctx, resolved))

	// Только неразрешенные, по DetectedAt по возрастанию
	unresolved, err := store.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, "c-1", unresolved[0].ConflictID)
	assert.Equal(t, "c-2", unresolved[1].ConflictID)

	// GetConflictsByBooking возвращает и разрешенные
	byBooking, err := store.GetConflictsByBooking(ctx, "b-3")
	require.NoError(t, err)
	require.Len(t, byBooking, 1)
	assert.True(t, byBooking[0].Resolved())
}

func TestStorage_DeleteConflict(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.SaveConflict(ctx, makeConflict("c-1", "b-1", time.Now())))
	require.NoError(t, store.DeleteConflict(ctx, "c-1"))

	_, err := store.GetConflict(ctx, "c-1")
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// создаем тестовое BoltDB хранилище во временной директории
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "client_test.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestNew_CreatesBuckets(t *testing.T) {
	store := createTestStorage(t)

	// Повторное открытие того же файла не должно падать
	dbPath := store.db.Path()
	require.NoError(t, store.Close())

	reopened, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

const keySyncState = "sync_state"

// SaveSyncState stores the singleton sync state
func (s *Storage) SaveSyncState(ctx context.Context, state *storage.SyncState) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSyncState)
		if err := bucket.Put([]byte(keySyncState), data); err != nil {
			return fmt.Errorf("failed to save sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetSyncState retrieves the singleton sync state
// Returns a zero-value state if no sync has ever run
func (s *Storage) GetSyncState(ctx context.Context) (*storage.SyncState, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	state := &storage.SyncState{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSyncState)
		data := bucket.Get([]byte(keySyncState))
		if data == nil {
			// Синхронизация еще не выполнялась
			return nil
		}
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("failed to unmarshal sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return state, nil
}

package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

const keySession = "session"

// SaveSession stores or replaces the session
func (s *Storage) SaveSession(ctx context.Context, session *storage.Session) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if err := bucket.Put([]byte(keySession), data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetSession retrieves the stored session
func (s *Storage) GetSession(ctx context.Context) (*storage.Session, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var session *storage.Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		data := bucket.Get([]byte(keySession))
		if data == nil {
			return storage.ErrSessionNotFound
		}

		session = &storage.Session{}
		if err := json.Unmarshal(data, session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// DeleteSession removes the stored session
func (s *Storage) DeleteSession(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		return bucket.Delete([]byte(keySession))
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

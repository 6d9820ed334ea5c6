package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

// SaveMeta stores or replaces sync metadata for a booking
func (s *Storage) SaveMeta(ctx context.Context, meta *storage.LocalMeta) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if meta.BookingID == "" {
		return fmt.Errorf("meta booking id is empty")
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if err := bucket.Put([]byte(meta.BookingID), data); err != nil {
			return fmt.Errorf("failed to save meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetMeta retrieves sync metadata by booking ID
func (s *Storage) GetMeta(ctx context.Context, bookingID string) (*storage.LocalMeta, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var meta *storage.LocalMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		data := bucket.Get([]byte(bookingID))
		if data == nil {
			return storage.ErrMetaNotFound
		}

		meta = &storage.LocalMeta{}
		if err := json.Unmarshal(data, meta); err != nil {
			return fmt.Errorf("failed to unmarshal meta: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return meta, nil
}

// ListMeta returns metadata for all known bookings
func (s *Storage) ListMeta(ctx context.Context) ([]*storage.LocalMeta, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var metas []*storage.LocalMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		return bucket.ForEach(func(k, v []byte) error {
			var meta storage.LocalMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("failed to unmarshal meta: %w", err)
			}
			metas = append(metas, &meta)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list meta: %w", err)
	}

	return metas, nil
}

// DeleteMeta removes sync metadata for a booking
func (s *Storage) DeleteMeta(ctx context.Context, bookingID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		return bucket.Delete([]byte(bookingID))
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

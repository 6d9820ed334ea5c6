package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

// SaveOperation stores or replaces the operation for op.BookingID.
// Ключ — BookingID, что структурно гарантирует не более одной операции
// на бронирование.
func (s *Storage) SaveOperation(ctx context.Context, op *storage.OutboxOperation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if op.BookingID == "" {
		return fmt.Errorf("operation booking id is empty")
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		if err := bucket.Put([]byte(op.BookingID), data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetOperation retrieves the operation for a booking
func (s *Storage) GetOperation(ctx context.Context, bookingID string) (*storage.OutboxOperation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var op *storage.OutboxOperation

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		data := bucket.Get([]byte(bookingID))
		if data == nil {
			return storage.ErrOperationNotFound
		}

		op = &storage.OutboxOperation{}
		if err := json.Unmarshal(data, op); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// PendingOperations returns operations with status Pending or Failed,
// ordered by CreatedAt ascending (oldest first)
func (s *Storage) PendingOperations(ctx context.Context) ([]*storage.OutboxOperation, error) {
	ops, err := s.ListOperations(ctx)
	if err != nil {
		return nil, err
	}

	pending := ops[:0]
	for _, op := range ops {
		if op.Status == storage.StatusPending || op.Status == storage.StatusFailed {
			pending = append(pending, op)
		}
	}

	return pending, nil
}

// ListOperations returns all operations ordered by CreatedAt ascending
func (s *Storage) ListOperations(ctx context.Context) ([]*storage.OutboxOperation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var ops []*storage.OutboxOperation

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		return bucket.ForEach(func(k, v []byte) error {
			var op storage.OutboxOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	// Oldest first: честный порядок дренажа, ранние правки не голодают
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	return ops, nil
}

// DeleteOperation removes the operation for a booking
func (s *Storage) DeleteOperation(ctx context.Context, bookingID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		return bucket.Delete([]byte(bookingID))
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

// SaveConflict stores or replaces a conflict record
func (s *Storage) SaveConflict(ctx context.Context, conflict *storage.Conflict) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if conflict.ConflictID == "" {
		return fmt.Errorf("conflict id is empty")
	}

	data, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if err := bucket.Put([]byte(conflict.ConflictID), data); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetConflict retrieves a conflict by its ID
func (s *Storage) GetConflict(ctx context.Context, conflictID string) (*storage.Conflict, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var conflict *storage.Conflict

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		data := bucket.Get([]byte(conflictID))
		if data == nil {
			return storage.ErrConflictNotFound
		}

		conflict = &storage.Conflict{}
		if err := json.Unmarshal(data, conflict); err != nil {
			return fmt.Errorf("failed to unmarshal conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return conflict, nil
}

// ListConflicts returns all unresolved conflicts, ordered by DetectedAt ascending
func (s *Storage) ListConflicts(ctx context.Context) ([]*storage.Conflict, error) {
	conflicts, err := s.allConflicts(ctx)
	if err != nil {
		return nil, err
	}

	unresolved := conflicts[:0]
	for _, c := range conflicts {
		if !c.Resolved() {
			unresolved = append(unresolved, c)
		}
	}

	return unresolved, nil
}

// GetConflictsByBooking returns all conflicts for a booking
func (s *Storage) GetConflictsByBooking(ctx context.Context, bookingID string) ([]*storage.Conflict, error) {
	conflicts, err := s.allConflicts(ctx)
	if err != nil {
		return nil, err
	}

	matched := conflicts[:0]
	for _, c := range conflicts {
		if c.BookingID == bookingID {
			matched = append(matched, c)
		}
	}

	return matched, nil
}

// DeleteConflict removes a conflict record
func (s *Storage) DeleteConflict(ctx context.Context, conflictID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		return bucket.Delete([]byte(conflictID))
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// allConflicts читает bucket целиком и сортирует по времени обнаружения
func (s *Storage) allConflicts(ctx context.Context) ([]*storage.Conflict, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var conflicts []*storage.Conflict

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		return bucket.ForEach(func(k, v []byte) error {
			var c storage.Conflict
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			conflicts = append(conflicts, &c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].DetectedAt.Before(conflicts[j].DetectedAt)
	})

	return conflicts, nil
}

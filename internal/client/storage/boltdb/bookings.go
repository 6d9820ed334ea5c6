package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/models"
)

// SaveBooking stores or replaces the full booking snapshot
func (s *Storage) SaveBooking(ctx context.Context, booking *models.Booking) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if booking.ID == "" {
		return fmt.Errorf("booking id is empty")
	}

	// Сериализуем снимок в JSON
	data, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBookings)
		if err := bucket.Put([]byte(booking.ID), data); err != nil {
			return fmt.Errorf("failed to save booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetBooking retrieves a booking by ID
func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var booking *models.Booking

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBookings)
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrBookingNotFound
		}

		booking = &models.Booking{}
		if err := json.Unmarshal(data, booking); err != nil {
			return fmt.Errorf("failed to unmarshal booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// ListBookings returns bookings matching the filter, ordered by StartsAt ascending
func (s *Storage) ListBookings(ctx context.Context, filter *storage.ListFilter) ([]*models.Booking, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var bookings []*models.Booking

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBookings)
		return bucket.ForEach(func(k, v []byte) error {
			var booking models.Booking
			if err := json.Unmarshal(v, &booking); err != nil {
				return fmt.Errorf("failed to unmarshal booking: %w", err)
			}
			if matchesFilter(&booking, filter) {
				bookings = append(bookings, &booking)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartsAt.Before(bookings[j].StartsAt)
	})

	return bookings, nil
}

// DeleteBooking removes a booking snapshot
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBookings)
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// matchesFilter проверяет бронирование на соответствие фильтру.
// nil-фильтр пропускает все.
func matchesFilter(b *models.Booking, filter *storage.ListFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Service != "" && b.Service != filter.Service {
		return false
	}
	if filter.From != nil && b.StartsAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !b.StartsAt.Before(*filter.To) {
		return false
	}
	return true
}

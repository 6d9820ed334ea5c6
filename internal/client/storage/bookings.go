package storage

import (
	"context"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
)

// ListFilter задает опциональные критерии выборки бронирований.
// Нулевые поля не ограничивают выборку.
type ListFilter struct {
	From    *time.Time // From нижняя граница StartsAt (включительно)
	To      *time.Time // To верхняя граница StartsAt (исключительно)
	Service string     // Service точное совпадение названия услуги
}

// BookingStorage defines interface for storing booking snapshots on client
type BookingStorage interface {
	// SaveBooking stores or replaces the full booking snapshot
	SaveBooking(ctx context.Context, booking *models.Booking) error

	// GetBooking retrieves a booking by ID
	// Returns ErrBookingNotFound if booking doesn't exist
	GetBooking(ctx context.Context, id string) (*models.Booking, error)

	// ListBookings returns bookings matching the filter, ordered by StartsAt ascending
	// nil filter returns everything
	ListBookings(ctx context.Context, filter *ListFilter) ([]*models.Booking, error)

	// DeleteBooking removes a booking snapshot
	// Deleting a missing booking is not an error
	DeleteBooking(ctx context.Context, id string) error
}

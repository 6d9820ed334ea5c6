package storage

import (
	"context"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
)

// BookingStorage определяет серверное хранилище бронирований.
// Мутации идемпотентны по opID: повторная доставка операции с тем же
// ключом возвращает сохраненный результат и не меняет данные.
type BookingStorage interface {
	// CreateBooking создает бронирование.
	// Возвращает каноническую запись с серверной версией (updated_at).
	// Если id уже занят (не replay), возвращает ErrVersionMismatch.
	CreateBooking(ctx context.Context, opID string, booking *models.Booking) (*models.Booking, error)

	// UpdateBooking заменяет бронирование при совпадении baseVersion
	// с текущей версией записи, иначе возвращает ErrVersionMismatch.
	UpdateBooking(ctx context.Context, opID string, booking *models.Booking, baseVersion time.Time) (*models.Booking, error)

	// DeleteBooking удаляет бронирование при совпадении baseVersion.
	// Удаление отсутствующей записи — успех (идемпотентность).
	DeleteBooking(ctx context.Context, opID, id string, baseVersion time.Time) error

	// GetBooking возвращает бронирование по id
	GetBooking(ctx context.Context, id string) (*models.Booking, error)

	// ListBookings возвращает полную коллекцию
	ListBookings(ctx context.Context) ([]*models.Booking, error)
}

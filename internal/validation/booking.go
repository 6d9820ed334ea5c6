package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/bookkeeper/internal/models"
)

// ValidationError помечает ошибку локальной записи: такая запись
// отклоняется до попадания в outbox.
var ErrValidation = errors.New("validation error")

const (
	maxNameLength  = 200
	maxNotesLength = 2000
)

// ValidateBooking проверяет бронирование перед локальной записью
func ValidateBooking(b *models.Booking) error {
	if b == nil {
		return fmt.Errorf("%w: booking is nil", ErrValidation)
	}
	if strings.TrimSpace(b.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if utf8.RuneCountInString(b.CustomerName) > maxNameLength {
		return fmt.Errorf("%w: customer name exceeds %d characters", ErrValidation, maxNameLength)
	}
	if strings.TrimSpace(b.Service) == "" {
		return fmt.Errorf("%w: service is required", ErrValidation)
	}
	if b.StartsAt.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrValidation)
	}
	if !b.EndsAt.IsZero() && b.EndsAt.Before(b.StartsAt) {
		return fmt.Errorf("%w: end time is before start time", ErrValidation)
	}
	if b.PriceCents < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if utf8.RuneCountInString(b.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrValidation, maxNotesLength)
	}
	return nil
}

// ValidatePatch проверяет частичное изменение бронирования
func ValidatePatch(p models.BookingPatch) error {
	if p.CustomerName != nil && strings.TrimSpace(*p.CustomerName) == "" {
		return fmt.Errorf("%w: customer name cannot be empty", ErrValidation)
	}
	if p.Service != nil && strings.TrimSpace(*p.Service) == "" {
		return fmt.Errorf("%w: service cannot be empty", ErrValidation)
	}
	if p.PriceCents != nil && *p.PriceCents < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if p.StartsAt != nil && p.StartsAt.IsZero() {
		return fmt.Errorf("%w: start time cannot be zero", ErrValidation)
	}
	return nil
}

// ValidatePayment проверяет платежную запись перед добавлением
func ValidatePayment(p models.PaymentEntry) error {
	if p.AmountCents == 0 {
		return fmt.Errorf("%w: payment amount is required", ErrValidation)
	}
	if strings.TrimSpace(p.Method) == "" {
		return fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	return nil
}

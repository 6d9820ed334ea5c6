package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
	"github.com/iudanet/bookkeeper/internal/server/storage"
)

// CreateBooking creates a booking, idempotent by opID.
// Повторная доставка того же opID возвращает сохраненный результат.
func (s *Storage) CreateBooking(ctx context.Context, opID string, booking *models.Booking) (*models.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if replayed, found, err := s.replay(ctx, tx, opID); err != nil {
		return nil, err
	} else if found {
		return replayed, nil
	}

	// id уже занят — конфликт с существующей записью
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, booking.ID).Scan(&exists)
	if err == nil {
		return nil, storage.ErrVersionMismatch
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing booking: %w", err)
	}

	canonical := booking.Clone()
	now := time.Now().UTC()
	canonical.CreatedAt = now
	canonical.UpdatedAt = now

	paymentsJSON, err := json.Marshal(canonical.Payments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payments: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, customer_name, service, notes,
			starts_at, ends_at, price_cents, payments,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		canonical.ID,
		canonical.CustomerName,
		canonical.Service,
		canonical.Notes,
		canonical.StartsAt.UnixNano(),
		canonical.EndsAt.UnixNano(),
		canonical.PriceCents,
		string(paymentsJSON),
		canonical.CreatedAt.UnixNano(),
		canonical.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := s.recordOp(ctx, tx, opID, canonical); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}
	return canonical, nil
}

// UpdateBooking replaces a booking when baseVersion matches the stored version
func (s *Storage) UpdateBooking(ctx context.Context, opID string, booking *models.Booking, baseVersion time.Time) (*models.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if replayed, found, err := s.replay(ctx, tx, opID); err != nil {
		return nil, err
	} else if found {
		return replayed, nil
	}

	current, err := s.getBookingTx(ctx, tx, booking.ID)
	if err != nil {
		return nil, err
	}

	if current.UpdatedAt.UnixNano() != baseVersion.UnixNano() {
		return nil, storage.ErrVersionMismatch
	}

	canonical := booking.Clone()
	canonical.CreatedAt = current.CreatedAt
	canonical.UpdatedAt = time.Now().UTC()

	paymentsJSON, err := json.Marshal(canonical.Payments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payments: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings
		SET customer_name = ?, service = ?, notes = ?,
		    starts_at = ?, ends_at = ?, price_cents = ?, payments = ?,
		    updated_at = ?
		WHERE id = ?
	`,
		canonical.CustomerName,
		canonical.Service,
		canonical.Notes,
		canonical.StartsAt.UnixNano(),
		canonical.EndsAt.UnixNano(),
		canonical.PriceCents,
		string(paymentsJSON),
		canonical.UpdatedAt.UnixNano(),
		canonical.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if err := s.recordOp(ctx, tx, opID, canonical); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tx: %w", err)
	}
	return canonical, nil
}

// DeleteBooking deletes a booking when baseVersion matches.
// Удаление отсутствующей записи — успех: повтор доставки не должен падать.
func (s *Storage) DeleteBooking(ctx context.Context, opID, id string, baseVersion time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, found, err := s.replay(ctx, tx, opID); err != nil {
		return err
	} else if found {
		return nil
	}

	current, err := s.getBookingTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return nil
		}
		return err
	}

	if current.UpdatedAt.UnixNano() != baseVersion.UnixNano() {
		return storage.ErrVersionMismatch
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := s.recordOp(ctx, tx, opID, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// GetBooking retrieves a booking by id
func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.getBooking(ctx, s.db, id)
}

// ListBookings returns the full collection ordered by start time
func (s *Storage) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, service, notes,
		       starts_at, ends_at, price_cents, payments,
		       created_at, updated_at
		FROM bookings
		ORDER BY starts_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) getBooking(ctx context.Context, q queryRower, id string) (*models.Booking, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, customer_name, service, notes,
		       starts_at, ends_at, price_cents, payments,
		       created_at, updated_at
		FROM bookings
		WHERE id = ?
	`, id)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Storage) getBookingTx(ctx context.Context, tx *sql.Tx, id string) (*models.Booking, error) {
	return s.getBooking(ctx, tx, id)
}

// replay возвращает сохраненный результат операции, если opID уже обработан
func (s *Storage) replay(ctx context.Context, tx *sql.Tx, opID string) (*models.Booking, bool, error) {
	var response string
	err := tx.QueryRowContext(ctx, `SELECT response FROM idempotency_keys WHERE op_id = ?`, opID).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	if response == "" {
		// Записанный delete
		return nil, true, nil
	}

	var b models.Booking
	if err := json.Unmarshal([]byte(response), &b); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal replayed response: %w", err)
	}
	return &b, true, nil
}

// recordOp сохраняет результат мутации под ее idempotency-ключом.
// canonical == nil означает delete.
func (s *Storage) recordOp(ctx context.Context, tx *sql.Tx, opID string, canonical *models.Booking) error {
	response := ""
	bookingID := ""
	if canonical != nil {
		data, err := json.Marshal(canonical)
		if err != nil {
			return fmt.Errorf("failed to marshal canonical record: %w", err)
		}
		response = string(data)
		bookingID = canonical.ID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency_keys (op_id, booking_id, response, created_at)
		VALUES (?, ?, ?, ?)
	`, opID, bookingID, response, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var startsAt, endsAt, createdAt, updatedAt int64
	var paymentsJSON string

	err := row.Scan(
		&b.ID,
		&b.CustomerName,
		&b.Service,
		&b.Notes,
		&startsAt,
		&endsAt,
		&b.PriceCents,
		&paymentsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.StartsAt = time.Unix(0, startsAt).UTC()
	b.EndsAt = time.Unix(0, endsAt).UTC()
	b.CreatedAt = time.Unix(0, createdAt).UTC()
	b.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if err := json.Unmarshal([]byte(paymentsJSON), &b.Payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payments: %w", err)
	}
	return b, nil
}

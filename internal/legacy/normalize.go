// Package legacy нормализует "сырые" записи бронирований из удаленной
// коллекции в текущую схему. Сервер может отдавать записи, созданные
// старыми клиентами: другие имена полей, цены в валютных единицах вместо
// центов, времена как unix-секунды. Normalize — чистая функция, она
// вызывается на каждой записи перед попаданием в локальное хранилище.
package legacy

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
)

// NormalizeFunc — сигнатура нормализатора, под которой его потребляет
// движок синхронизации.
type NormalizeFunc func(raw json.RawMessage) (*models.Booking, error)

// rawBooking принимает и текущую, и legacy-схему одновременно
type rawBooking struct {
	ID string `json:"id"`

	// Текущая схема
	CustomerName string          `json:"customer_name"`
	Service      string          `json:"service"`
	StartsAt     *time.Time      `json:"starts_at"`
	EndsAt       *time.Time      `json:"ends_at"`
	PriceCents   *int64          `json:"price_cents"`
	Notes        string          `json:"notes"`
	Payments     []rawPayment    `json:"payments"`
	CreatedAt    *time.Time      `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at"`

	// Legacy-схема
	ClientName  string       `json:"client_name"`  // старое имя customer_name
	ServiceName string       `json:"service_name"` // старое имя service
	Start       *int64       `json:"start"`        // unix-секунды вместо starts_at
	End         *int64       `json:"end"`          // unix-секунды вместо ends_at
	Price       *float64     `json:"price"`        // валютные единицы вместо центов
	Comment     string       `json:"comment"`      // старое имя notes
	Ledger      []rawPayment `json:"ledger"`       // старое имя payments
	ModifiedAt  *int64       `json:"modified_at"`  // unix-секунды вместо updated_at
}

type rawPayment struct {
	EntryID    string     `json:"entry_id"`
	RecordedAt *time.Time `json:"recorded_at"`
	Method     string     `json:"method"`
	Note       string     `json:"note"`

	AmountCents *int64   `json:"amount_cents"`
	Amount      *float64 `json:"amount"`      // legacy: валютные единицы
	PaidAt      *int64   `json:"paid_at"`     // legacy: unix-секунды
}

// Normalize преобразует сырую запись в models.Booking.
// Поля текущей схемы имеют приоритет над legacy-полями.
func Normalize(raw json.RawMessage) (*models.Booking, error) {
	var r rawBooking
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw booking: %w", err)
	}

	if r.ID == "" {
		return nil, fmt.Errorf("raw booking has no id")
	}

	b := &models.Booking{
		ID:           r.ID,
		CustomerName: firstNonEmpty(r.CustomerName, r.ClientName),
		Service:      firstNonEmpty(r.Service, r.ServiceName),
		Notes:        firstNonEmpty(r.Notes, r.Comment),
	}

	switch {
	case r.StartsAt != nil:
		b.StartsAt = *r.StartsAt
	case r.Start != nil:
		b.StartsAt = time.Unix(*r.Start, 0).UTC()
	}
	switch {
	case r.EndsAt != nil:
		b.EndsAt = *r.EndsAt
	case r.End != nil:
		b.EndsAt = time.Unix(*r.End, 0).UTC()
	}

	switch {
	case r.PriceCents != nil:
		b.PriceCents = *r.PriceCents
	case r.Price != nil:
		// Legacy-цены в валютных единицах; округляем к ближайшему центу,
		// знак суммы учитывается (возвраты в журнале отрицательные)
		b.PriceCents = int64(math.Round(*r.Price * 100))
	}

	if r.CreatedAt != nil {
		b.CreatedAt = *r.CreatedAt
	}
	switch {
	case r.UpdatedAt != nil:
		b.UpdatedAt = *r.UpdatedAt
	case r.ModifiedAt != nil:
		b.UpdatedAt = time.Unix(*r.ModifiedAt, 0).UTC()
	}

	payments := r.Payments
	if payments == nil {
		payments = r.Ledger
	}
	for _, p := range payments {
		entry, err := normalizePayment(p)
		if err != nil {
			return nil, fmt.Errorf("booking %s: %w", r.ID, err)
		}
		b.Payments = append(b.Payments, entry)
	}

	return b, nil
}

func normalizePayment(p rawPayment) (models.PaymentEntry, error) {
	if p.EntryID == "" {
		return models.PaymentEntry{}, fmt.Errorf("payment entry has no entry_id")
	}

	entry := models.PaymentEntry{
		EntryID: p.EntryID,
		Method:  p.Method,
		Note:    p.Note,
	}

	switch {
	case p.AmountCents != nil:
		entry.AmountCents = *p.AmountCents
	case p.Amount != nil:
		entry.AmountCents = int64(math.Round(*p.Amount * 100))
	}

	switch {
	case p.RecordedAt != nil:
		entry.RecordedAt = *p.RecordedAt
	case p.PaidAt != nil:
		entry.RecordedAt = time.Unix(*p.PaidAt, 0).UTC()
	}

	return entry, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

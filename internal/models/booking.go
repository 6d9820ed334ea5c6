// Package models содержит доменные модели бронирований
package models

import "time"

// Booking — бронирование, единица синхронизации.
// JSON-теги совпадают с текущей wire-схемой: одна и та же структура
// живет в локальном хранилище и в телах запросов.
type Booking struct {
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartsAt     time.Time      `json:"starts_at"`
	EndsAt       time.Time      `json:"ends_at"`
	ID           string         `json:"id"`
	CustomerName string         `json:"customer_name"`
	Service      string         `json:"service"`
	Notes        string         `json:"notes,omitempty"`
	Payments     []PaymentEntry `json:"payments"`
	PriceCents   int64          `json:"price_cents"`
}

// PaymentEntry — запись в append-only платежном журнале бронирования.
// EntryID генерируется клиентом: повторное применение той же записи
// при слиянии не дублирует платеж.
type PaymentEntry struct {
	RecordedAt  time.Time `json:"recorded_at"`
	EntryID     string    `json:"entry_id"`
	Method      string    `json:"method"`
	Note        string    `json:"note,omitempty"`
	AmountCents int64     `json:"amount_cents"`
}

// Clone возвращает глубокую копию бронирования
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Payments != nil {
		clone.Payments = make([]PaymentEntry, len(b.Payments))
		copy(clone.Payments, b.Payments)
	}
	return &clone
}

// HasPayment сообщает, есть ли в журнале запись с данным entry id
func (b *Booking) HasPayment(entryID string) bool {
	for _, p := range b.Payments {
		if p.EntryID == entryID {
			return true
		}
	}
	return false
}

// BookingPatch — частичное изменение бронирования.
// nil-поле означает "не менять".
type BookingPatch struct {
	StartsAt     *time.Time
	EndsAt       *time.Time
	CustomerName *string
	Service      *string
	Notes        *string
	PriceCents   *int64
}

// Apply накладывает patch на бронирование
func (p BookingPatch) Apply(b *Booking) {
	if p.CustomerName != nil {
		b.CustomerName = *p.CustomerName
	}
	if p.Service != nil {
		b.Service = *p.Service
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	if p.StartsAt != nil {
		b.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		b.EndsAt = *p.EndsAt
	}
	if p.PriceCents != nil {
		b.PriceCents = *p.PriceCents
	}
}

// MergeBooking сливает два снимка одного бронирования при coalescing
// outbox-операций. Скалярные поля берутся из incoming (он новее),
// платежный журнал — объединение по entry id, отфильтрованное до
// множества incoming: удаление платежа в incoming побеждает.
func MergeBooking(base, incoming *Booking) *Booking {
	if base == nil {
		return incoming.Clone()
	}
	if incoming == nil {
		return base.Clone()
	}

	merged := incoming.Clone()

	// Журнал берется из incoming целиком: платежи из base, которых в нем
	// нет, отброшены намеренно (удаление в поздней правке побеждает).
	// Остается только дедупликация по entry id.
	deduped := merged.Payments[:0]
	seen := make(map[string]bool, len(merged.Payments))
	for _, p := range merged.Payments {
		if !seen[p.EntryID] {
			deduped = append(deduped, p)
			seen[p.EntryID] = true
		}
	}
	merged.Payments = deduped

	return merged
}

package api

import (
	"encoding/json"
	"time"
)

// Заголовки протокола мутаций.
const (
	// HeaderIdempotencyKey несет opId операции: повторная доставка
	// с тем же ключом не создает дубликатов на сервере
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderBaseVersion несет baseVersion (RFC3339Nano) для
	// optimistic concurrency проверки при PUT и DELETE
	HeaderBaseVersion = "X-Base-Version"
)

// BaseVersionFormat — формат времени в HeaderBaseVersion
const BaseVersionFormat = time.RFC3339Nano

// PaymentRecord представляет платежную запись на проводе
type PaymentRecord struct {
	RecordedAt  time.Time `json:"recorded_at"`
	EntryID     string    `json:"entry_id"`
	Method      string    `json:"method"`
	Note        string    `json:"note,omitempty"`
	AmountCents int64     `json:"amount_cents"`
}

// BookingRecord представляет бронирование на проводе (текущая схема).
// Старые клиенты могут присылать записи в legacy-формате; нормализация
// в текущую схему выполняется на стороне потребителя при ingest.
type BookingRecord struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartsAt     time.Time       `json:"starts_at"`
	EndsAt       time.Time       `json:"ends_at"`
	ID           string          `json:"id"`
	CustomerName string          `json:"customer_name"`
	Service      string          `json:"service"`
	Notes        string          `json:"notes,omitempty"`
	Payments     []PaymentRecord `json:"payments"`
	PriceCents   int64           `json:"price_cents"`
}

// ConflictResponse — тело ответа 409 Conflict: текущая версия записи
// на сервере, чтобы клиент мог зафиксировать конфликт для разрешения
type ConflictResponse struct {
	Current json.RawMessage `json:"current"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

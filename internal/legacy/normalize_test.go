package legacy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CurrentSchema(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "b-1",
		"customer_name": "Anna",
		"service": "haircut",
		"starts_at": "2026-03-01T10:00:00Z",
		"ends_at": "2026-03-01T11:00:00Z",
		"price_cents": 150000,
		"notes": "first visit",
		"payments": [
			{"entry_id": "p-1", "amount_cents": 50000, "method": "cash", "recorded_at": "2026-03-01T10:30:00Z"}
		],
		"created_at": "2026-02-01T09:00:00Z",
		"updated_at": "2026-02-15T09:00:00Z"
	}`)

	b, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, "Anna", b.CustomerName)
	assert.Equal(t, "haircut", b.Service)
	assert.Equal(t, "first visit", b.Notes)
	assert.Equal(t, int64(150000), b.PriceCents)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), b.StartsAt)
	assert.Equal(t, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC), b.UpdatedAt)
	require.Len(t, b.Payments, 1)
	assert.Equal(t, "p-1", b.Payments[0].EntryID)
	assert.Equal(t, int64(50000), b.Payments[0].AmountCents)
}

func TestNormalize_LegacySchema(t *testing.T) {
	// Запись от старого клиента: другие имена полей, unix-секунды,
	// цены в валютных единицах
	raw := json.RawMessage(`{
		"id": "b-2",
		"client_name": "Boris",
		"service_name": "massage",
		"start": 1767261600,
		"end": 1767265200,
		"price": 1500.50,
		"comment": "regular",
		"ledger": [
			{"entry_id": "p-2", "amount": 500.0, "method": "card", "paid_at": 1767263400}
		],
		"modified_at": 1767265200
	}`)

	b, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "Boris", b.CustomerName)
	assert.Equal(t, "massage", b.Service)
	assert.Equal(t, "regular", b.Notes)
	assert.Equal(t, int64(150050), b.PriceCents)
	assert.Equal(t, time.Unix(1767261600, 0).UTC(), b.StartsAt)
	assert.Equal(t, time.Unix(1767265200, 0).UTC(), b.UpdatedAt)
	require.Len(t, b.Payments, 1)
	assert.Equal(t, int64(50000), b.Payments[0].AmountCents)
	assert.Equal(t, time.Unix(1767263400, 0).UTC(), b.Payments[0].RecordedAt)
}

func TestNormalize_LegacyNegativeAmounts(t *testing.T) {
	// Возвраты в legacy-журнале отрицательные: округление к ближайшему
	// центу должно уважать знак, а не тянуть сумму к нулю
	raw := json.RawMessage(`{
		"id": "b-5",
		"client_name": "Vera",
		"price": -1500.50,
		"ledger": [
			{"entry_id": "p-3", "amount": -10.0, "method": "card"},
			{"entry_id": "p-4", "amount": -10.006, "method": "card"}
		]
	}`)

	b, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(-150050), b.PriceCents)
	require.Len(t, b.Payments, 2)
	assert.Equal(t, int64(-1000), b.Payments[0].AmountCents)
	assert.Equal(t, int64(-1001), b.Payments[1].AmountCents)
}

func TestNormalize_CurrentFieldsWin(t *testing.T) {
	// Смешанная запись: поля текущей схемы имеют приоритет
	raw := json.RawMessage(`{
		"id": "b-3",
		"customer_name": "Anna",
		"client_name": "OldName",
		"service": "haircut",
		"starts_at": "2026-03-01T10:00:00Z",
		"price_cents": 100,
		"price": 999.0
	}`)

	b, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "Anna", b.CustomerName)
	assert.Equal(t, int64(100), b.PriceCents)
}

func TestNormalize_MissingID(t *testing.T) {
	_, err := Normalize(json.RawMessage(`{"customer_name": "Anna"}`))
	assert.Error(t, err)
}

func TestNormalize_MalformedJSON(t *testing.T) {
	_, err := Normalize(json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestNormalize_PaymentWithoutEntryID(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "b-4",
		"customer_name": "Anna",
		"payments": [{"amount_cents": 100, "method": "cash"}]
	}`)

	_, err := Normalize(raw)
	assert.Error(t, err)
}

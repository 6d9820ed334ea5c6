package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/bookkeeper/internal/models"
	"github.com/iudanet/bookkeeper/internal/server/storage"
	"github.com/iudanet/bookkeeper/internal/validation"
	"github.com/iudanet/bookkeeper/pkg/api"
)

// BookingsHandler обрабатывает CRUD бронирований
type BookingsHandler struct {
	logger   *slog.Logger
	bookings storage.BookingStorage
}

func NewBookingsHandler(logger *slog.Logger, bookings storage.BookingStorage) *BookingsHandler {
	return &BookingsHandler{
		logger:   logger,
		bookings: bookings,
	}
}

// Register вешает маршруты на mux
func (h *BookingsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/bookings", h.List)
	mux.HandleFunc("POST /api/v1/bookings", h.Create)
	mux.HandleFunc("PUT /api/v1/bookings/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", h.Delete)
}

// List обрабатывает GET /api/v1/bookings — полная коллекция
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListBookings(r.Context())
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}

	records := make([]api.BookingRecord, 0, len(bookings))
	for _, b := range bookings {
		records = append(records, toRecord(b))
	}
	writeJSON(w, http.StatusOK, records)
}

// Create обрабатывает POST /api/v1/bookings
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	opID, ok := h.idempotencyKey(w, r)
	if !ok {
		return
	}

	booking, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}

	created, err := h.bookings.CreateBooking(r.Context(), opID, booking)
	if err != nil {
		h.mutationError(w, r, booking.ID, err, "create")
		return
	}

	writeJSON(w, http.StatusCreated, toRecord(created))
}

// Update обрабатывает PUT /api/v1/bookings/{id}
func (h *BookingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	opID, ok := h.idempotencyKey(w, r)
	if !ok {
		return
	}
	baseVersion, ok := h.baseVersion(w, r)
	if !ok {
		return
	}

	booking, ok := h.decodeBooking(w, r)
	if !ok {
		return
	}
	booking.ID = r.PathValue("id")

	updated, err := h.bookings.UpdateBooking(r.Context(), opID, booking, baseVersion)
	if err != nil {
		h.mutationError(w, r, booking.ID, err, "update")
		return
	}

	writeJSON(w, http.StatusOK, toRecord(updated))
}

// Delete обрабатывает DELETE /api/v1/bookings/{id}
func (h *BookingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	opID, ok := h.idempotencyKey(w, r)
	if !ok {
		return
	}
	baseVersion, ok := h.baseVersion(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := h.bookings.DeleteBooking(r.Context(), opID, id, baseVersion); err != nil {
		h.mutationError(w, r, id, err, "delete")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// mutationError переводит ошибки хранилища в ответы протокола.
// Version mismatch отвечает 409 с текущей версией записи.
func (h *BookingsHandler) mutationError(w http.ResponseWriter, r *http.Request, bookingID string, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrVersionMismatch):
		current, getErr := h.bookings.GetBooking(r.Context(), bookingID)
		if getErr != nil {
			h.logger.Error("failed to load current record for conflict", "booking_id", bookingID, "error", getErr)
			writeError(w, http.StatusInternalServerError, "failed to load current record")
			return
		}
		raw, marshalErr := json.Marshal(toRecord(current))
		if marshalErr != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode current record")
			return
		}
		h.logger.Info("version conflict", "op", op, "booking_id", bookingID)
		writeJSON(w, http.StatusConflict, api.ConflictResponse{Current: raw})

	case errors.Is(err, storage.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking not found")

	default:
		h.logger.Error("booking mutation failed", "op", op, "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *BookingsHandler) idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	opID := r.Header.Get(api.HeaderIdempotencyKey)
	if opID == "" {
		writeError(w, http.StatusBadRequest, "missing "+api.HeaderIdempotencyKey+" header")
		return "", false
	}
	if _, err := uuid.Parse(opID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+api.HeaderIdempotencyKey+" header")
		return "", false
	}
	return opID, true
}

func (h *BookingsHandler) baseVersion(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.Header.Get(api.HeaderBaseVersion)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing "+api.HeaderBaseVersion+" header")
		return time.Time{}, false
	}
	baseVersion, err := time.Parse(api.BaseVersionFormat, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+api.HeaderBaseVersion+" header")
		return time.Time{}, false
	}
	return baseVersion, true
}

func (h *BookingsHandler) decodeBooking(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	var record api.BookingRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	booking := fromRecord(&record)
	if err := validation.ValidateBooking(booking); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	return booking, true
}

func toRecord(b *models.Booking) api.BookingRecord {
	payments := make([]api.PaymentRecord, 0, len(b.Payments))
	for _, p := range b.Payments {
		payments = append(payments, api.PaymentRecord{
			EntryID:     p.EntryID,
			AmountCents: p.AmountCents,
			Method:      p.Method,
			Note:        p.Note,
			RecordedAt:  p.RecordedAt,
		})
	}
	return api.BookingRecord{
		ID:           b.ID,
		CustomerName: b.CustomerName,
		Service:      b.Service,
		Notes:        b.Notes,
		StartsAt:     b.StartsAt,
		EndsAt:       b.EndsAt,
		PriceCents:   b.PriceCents,
		Payments:     payments,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func fromRecord(r *api.BookingRecord) *models.Booking {
	payments := make([]models.PaymentEntry, 0, len(r.Payments))
	for _, p := range r.Payments {
		payments = append(payments, models.PaymentEntry{
			EntryID:     p.EntryID,
			AmountCents: p.AmountCents,
			Method:      p.Method,
			Note:        p.Note,
			RecordedAt:  p.RecordedAt,
		})
	}
	return &models.Booking{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Service:      r.Service,
		Notes:        r.Notes,
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
		PriceCents:   r.PriceCents,
		Payments:     payments,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

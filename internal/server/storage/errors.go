package storage

import "errors"

var (
	// ErrBookingNotFound возвращается когда бронирование не найдено
	ErrBookingNotFound = errors.New("booking not found")

	// ErrVersionMismatch возвращается когда baseVersion мутации не
	// совпадает с текущей версией записи на сервере
	ErrVersionMismatch = errors.New("booking version mismatch")
)

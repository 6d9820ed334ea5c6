package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Классы ошибок удаленного сервиса. Движок синхронизации различает их,
// чтобы решить: зафиксировать конфликт, остановить дренаж или повторить
// операцию в следующем цикле.
var (
	// ErrUnauthorized — 401/403: текущий цикл дренажа останавливается,
	// остальные операции тоже были бы отклонены
	ErrUnauthorized = errors.New("unauthorized")
)

// VersionConflictError — 409: удаленная версия не совпала с baseVersion.
// Current содержит сырую текущую запись сервера (нормализуется при ingest).
type VersionConflictError struct {
	Current json.RawMessage
}

func (e *VersionConflictError) Error() string {
	return "version conflict: remote record changed since base version"
}

// TransportError — сетевая ошибка без ответа сервера: соединение, DNS,
// таймаут транспорта. Фатальна для текущего цикла, но пригодна для
// автоматического повтора при следующем триггере.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError — прочие не-2xx ответы сервера
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.StatusCode)
}

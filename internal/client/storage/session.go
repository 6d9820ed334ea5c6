package storage

import (
	"context"
	"time"
)

// Session хранит данные сессии пользователя на клиенте.
// Получение токена (логин, refresh) — ответственность внешнего слоя;
// здесь только долговременное хранение.
type Session struct {
	SavedAt     time.Time `json:"saved_at"`
	Username    string    `json:"username"`
	AccessToken string    `json:"access_token"`
}

// SessionStorage defines interface for storing the client session
type SessionStorage interface {
	// SaveSession stores or replaces the session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves the stored session
	// Returns ErrSessionNotFound if no session exists
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session
	DeleteSession(ctx context.Context) error
}

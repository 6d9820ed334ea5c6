// Package session хранит токен доступа между запусками клиента
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/bookkeeper/internal/client/storage"
)

// Store загружает и сохраняет сессию пользователя.
// Реализует api.TokenProvider: пустой токен при отсутствии сессии —
// это валидное состояние (анонимный/dev-режим), а не ошибка.
type Store struct {
	sessions storage.SessionStorage
}

func NewStore(sessions storage.SessionStorage) *Store {
	return &Store{sessions: sessions}
}

// AccessToken returns the stored token, or "" when no session exists
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	sess, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return sess.AccessToken, nil
}

// SaveToken persists a new session
func (s *Store) SaveToken(ctx context.Context, username, accessToken string) error {
	sess := &storage.Session{
		Username:    username,
		AccessToken: accessToken,
		SavedAt:     time.Now(),
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Current returns the stored session
func (s *Store) Current(ctx context.Context) (*storage.Session, error) {
	return s.sessions.GetSession(ctx)
}

// Clear removes the stored session
func (s *Store) Clear(ctx context.Context) error {
	if err := s.sessions.DeleteSession(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Expiry возвращает срок действия сохраненного токена.
// Токен не верифицируется: подпись проверяет сервер, клиенту нужен
// только exp-клейм для подсказки "сессия истекла, залогиньтесь снова".
func (s *Store) Expiry(ctx context.Context) (time.Time, error) {
	sess, err := s.sessions.GetSession(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get session: %w", err)
	}

	token, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no expiration claim")
	}
	return exp.Time, nil
}

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/bookkeeper/internal/server/handlers"
)

func testJWTConfig() handlers.JWTConfig {
	return handlers.JWTConfig{
		Secret:         []byte("test-secret-key"),
		AccessTokenTTL: time.Hour,
	}
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, _ := r.Context().Value(handlers.UsernameKey).(string)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(username))
	})
	return AuthMiddleware(logger, testJWTConfig())(next)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token, _, err := handlers.GenerateAccessToken(testJWTConfig(), "admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// Username из claims доступен обработчику через контекст
	assert.Equal(t, "admin", rec.Body.String())
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	foreign := handlers.JWTConfig{Secret: []byte("other-secret"), AccessTokenTTL: time.Hour}
	token, _, err := handlers.GenerateAccessToken(foreign, "admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protectedHandler(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

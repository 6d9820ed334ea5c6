package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/bookkeeper/pkg/api"
)

// AuthHandler обрабатывает выдачу токенов.
// Это dev-сервер: единственный пользователь задается флагами процесса,
// хранилища пользователей нет.
type AuthHandler struct {
	logger    *slog.Logger
	jwtConfig JWTConfig
	username  string
	password  string
}

func NewAuthHandler(logger *slog.Logger, jwtConfig JWTConfig, username, password string) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		jwtConfig: jwtConfig,
		username:  username,
		password:  password,
	}
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1
	if !userOK || !passOK {
		h.logger.Warn("login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresIn, err := GenerateAccessToken(h.jwtConfig, req.Username)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.logger.Info("login ok", "username", req.Username)
	writeJSON(w, http.StatusOK, api.TokenResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
	})
}

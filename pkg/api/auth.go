package api

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"` // username пользователя
	Password string `json:"password"` // пароль (dev-сервер сверяет с настроенным значением)
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/bookkeeper/internal/models"
	"github.com/iudanet/bookkeeper/pkg/api"
)

// ClientAPI определяет интерфейс удаленного сервиса бронирований,
// который потребляет движок синхронизации.
type ClientAPI interface {
	// CreateBooking отправляет POST /api/v1/bookings с idempotency-ключом.
	// Возвращает сырую каноническую запись, сохраненную сервером.
	CreateBooking(ctx context.Context, opID string, booking *models.Booking) (json.RawMessage, error)

	// UpdateBooking отправляет PUT /api/v1/bookings/{id} с idempotency-ключом
	// и conditional-заголовком baseVersion.
	UpdateBooking(ctx context.Context, opID string, booking *models.Booking, baseVersion time.Time) (json.RawMessage, error)

	// DeleteBooking отправляет DELETE /api/v1/bookings/{id} с conditional-заголовком.
	DeleteBooking(ctx context.Context, opID, id string, baseVersion time.Time) error

	// FetchBookings возвращает полную удаленную коллекцию сырых записей.
	FetchBookings(ctx context.Context) ([]json.RawMessage, error)

	// Health проверяет доступность сервера (GET /health).
	Health(ctx context.Context) error
}

// TokenProvider выдает access token для авторизации запросов.
// Пустой токен означает неавторизованный запрос.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	baseURL    string
}

// Compile-time check that Client implements ClientAPI
var _ ClientAPI = (*Client)(nil)

// NewClient создает новый API клиент.
// tokens может быть nil — тогда запросы идут без авторизации.
func NewClient(baseURL string, tokens TokenProvider) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateBooking creates a booking on the server
func (c *Client) CreateBooking(ctx context.Context, opID string, booking *models.Booking) (json.RawMessage, error) {
	headers := map[string]string{
		api.HeaderIdempotencyKey: opID,
	}

	raw, err := c.doRequest(ctx, http.MethodPost, "/api/v1/bookings", headers, booking)
	if err != nil {
		return nil, fmt.Errorf("create booking request failed: %w", err)
	}
	return raw, nil
}

// UpdateBooking updates a booking with an optimistic-concurrency check
func (c *Client) UpdateBooking(ctx context.Context, opID string, booking *models.Booking, baseVersion time.Time) (json.RawMessage, error) {
	headers := map[string]string{
		api.HeaderIdempotencyKey: opID,
		api.HeaderBaseVersion:    baseVersion.UTC().Format(api.BaseVersionFormat),
	}

	path := "/api/v1/bookings/" + url.PathEscape(booking.ID)
	raw, err := c.doRequest(ctx, http.MethodPut, path, headers, booking)
	if err != nil {
		return nil, fmt.Errorf("update booking request failed: %w", err)
	}
	return raw, nil
}

// DeleteBooking deletes a booking with an optimistic-concurrency check
func (c *Client) DeleteBooking(ctx context.Context, opID, id string, baseVersion time.Time) error {
	headers := map[string]string{
		api.HeaderIdempotencyKey: opID,
		api.HeaderBaseVersion:    baseVersion.UTC().Format(api.BaseVersionFormat),
	}

	path := "/api/v1/bookings/" + url.PathEscape(id)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, headers, nil); err != nil {
		return fmt.Errorf("delete booking request failed: %w", err)
	}
	return nil
}

// FetchBookings retrieves the full remote collection as raw records
func (c *Client) FetchBookings(ctx context.Context) ([]json.RawMessage, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/api/v1/bookings", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch bookings request failed: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode bookings collection: %w", err)
	}
	return records, nil
}

// Login обменивает учетные данные на access token.
// Не входит в ClientAPI: движку синхронизации логин не нужен.
func (c *Client) Login(ctx context.Context, username, password string) (*api.TokenResponse, error) {
	req := api.LoginRequest{
		Username: username,
		Password: password,
	}

	raw, err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", nil, req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	var tokenResp api.TokenResponse
	if err := json.Unmarshal(raw, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tokenResp, nil
}

// Health checks server availability
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос и классифицирует ошибки ответа.
// Возвращает тело успешного ответа как есть.
func (c *Client) doRequest(ctx context.Context, method, path string, headers map[string]string, body any) (json.RawMessage, error) {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Авторизация: пустой токен — запрос идет без заголовка
	if c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get access token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Ответа не было: сеть, DNS, таймаут
		return nil, &TransportError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	return nil, classifyStatus(resp.StatusCode, respBody)
}

// classifyStatus превращает не-2xx ответ в типизированную ошибку
func classifyStatus(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		var conflictResp api.ConflictResponse
		if err := json.Unmarshal(body, &conflictResp); err != nil {
			return &StatusError{StatusCode: statusCode, Message: "malformed conflict response"}
		}
		return &VersionConflictError{Current: conflictResp.Current}
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &StatusError{StatusCode: statusCode, Message: errResp.Error}
	}
	return &StatusError{StatusCode: statusCode, Message: string(body)}
}

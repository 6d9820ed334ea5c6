package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/bookkeeper/pkg/api"
)

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	version string
}

func NewHealthHandler(logger *slog.Logger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		version: version,
	}
}

// Health обрабатывает GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler that checks store.
func NewHealthHandler(store Pinger, timeout time.Duration) *HealthHandler {
	return &HealthHandler{store: store, timeout: timeout}
}

// Handle processes the /health endpoint.
func (h *HealthHandler) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"store":  "unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

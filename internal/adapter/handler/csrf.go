package handler

import (
	"net/http"

	"church-admin-gateway/internal/usecase"
	"church-admin-gateway/middleware"
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

// CSRFHandler handles CSRF token requests.
type CSRFHandler struct {
	uc *usecase.GenerateCSRF
}

// NewCSRFHandler creates a new CSRF handler.
func NewCSRFHandler(uc *usecase.GenerateCSRF) *CSRFHandler {
	return &CSRFHandler{uc: uc}
}

// csrfResponse represents the CSRF token response.
type csrfResponse struct {
	Data struct {
		CSRFToken string `json:"csrf_token"`
	} `json:"data"`
}

// Handle issues the token for the request's browser context.
func (h *CSRFHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	token, err := h.uc.Execute(ctx, middleware.ContextID(ctx))
	if err != nil {
		return mapDomainError(err)
	}
	logger.FromContext(ctx).DebugContext(ctx, "csrf token issued")

	resp := csrfResponse{}
	resp.Data.CSRFToken = token
	return c.JSON(http.StatusOK, resp)
}

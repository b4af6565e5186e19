package middleware

import (
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

// RequestContext copies the request ID assigned by echo's RequestID
// middleware into the logging context.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				ctx := logger.WithRequestID(c.Request().Context(), id)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

package middleware

import (
	"net/http"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

const (
	// CSRFHeader carries the CSRF token on XHR requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField carries the CSRF token on form posts.
	CSRFFormField = "_csrf"
)

// CSRF rejects unsafe requests whose token does not match the browser context.
func CSRF(tokens domain.CSRFTokenGenerator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			ctx := c.Request().Context()
			token := c.Request().Header.Get(CSRFHeader)
			if token == "" {
				token = c.FormValue(CSRFFormField)
			}

			if err := tokens.Verify(ContextID(ctx), token); err != nil {
				logger.FromContext(ctx).WarnContext(ctx, "csrf check failed",
					"path", c.Path(),
					"error", err,
				)
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}
			return next(c)
		}
	}
}

package handler

import (
	"errors"
	"net/http"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/utils/validator"

	"github.com/labstack/echo/v4"
)

// mapDomainError converts a domain error into an appropriate echo.HTTPError.
func mapDomainError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrSessionExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

	case errors.Is(err, domain.ErrAuthorizationDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")

	case errors.Is(err, domain.ErrContextDisposed):
		return echo.NewHTTPError(http.StatusConflict, "browser context expired, reload the page")

	case errors.Is(err, domain.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")

	case errors.Is(err, domain.ErrAPIUnavailable),
		errors.Is(err, domain.ErrCorruptedSessionData):
		return echo.NewHTTPError(http.StatusBadGateway, "church API unavailable")

	case errors.Is(err, domain.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")

	case errors.Is(err, domain.ErrCSRFSecretMissing),
		errors.Is(err, domain.ErrCSRFTokenInvalid):
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation error")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// flowStatus picks the status for a failed login, registration or profile
// update. Anything the user can correct is 422.
func flowStatus(err error) int {
	var verr *validator.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrContextDisposed),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrAPIUnavailable),
		errors.Is(err, domain.ErrCorruptedSessionData):
		return mapDomainError(err).Code
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusUnprocessableEntity
	}
}

// flowBody is the JSON shape of a failed flow.
type flowBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func newFlowBody(err error) flowBody {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return flowBody{Error: "The given data was invalid.", Fields: verr.Errors}
	}
	var fe *domain.FlowError
	if errors.As(err, &fe) {
		return flowBody{Error: fe.Message, Fields: fe.Fields}
	}
	return flowBody{Error: mapDomainError(err).Message.(string)}
}

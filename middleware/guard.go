package middleware

import (
	"context"
	"net/http"
	"time"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/internal/usecase"
	"church-admin-gateway/metrics"
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

const loadingPage = `<!doctype html>
<html lang="en"><head><meta charset="utf-8"><meta http-equiv="refresh" content="1">
<title>Loading</title></head>
<body><p role="status" aria-busy="true">Loading&hellip;</p></body></html>`

// Guard protects routes with access constraints.
type Guard struct {
	check          *usecase.CheckAccess
	restoreTimeout time.Duration
}

// NewGuard creates a guard that waits up to restoreTimeout for a browser
// context's session to load before answering with a loading indicator.
func NewGuard(check *usecase.CheckAccess, restoreTimeout time.Duration) *Guard {
	return &Guard{check: check, restoreTimeout: restoreTimeout}
}

// GuardOption configures one protected region.
type GuardOption func(*guardOptions)

type guardOptions struct {
	fallback echo.HandlerFunc
}

// WithFallback renders h instead of redirecting when access is refused.
func WithFallback(h echo.HandlerFunc) GuardOption {
	return func(o *guardOptions) { o.fallback = h }
}

// Require returns middleware enforcing constraints. It never turns an unmet
// condition into an error; the outcome is always a response.
func (g *Guard) Require(constraints domain.Constraints, opts ...GuardOption) echo.MiddlewareFunc {
	var o guardOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			manager := SessionManagerFrom(ctx)
			if manager == nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "browser context missing")
			}

			restoreCtx, cancel := context.WithTimeout(ctx, g.restoreTimeout)
			manager.Restore(restoreCtx)
			cancel()

			snap := manager.Snapshot()
			decision := g.check.Execute(snap.State, snap.User, constraints, o.fallback != nil)
			metrics.RecordGuardDecision(decision.Outcome.String())

			if snap.User != nil {
				ctx = logger.WithUserID(ctx, snap.User.ID)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			switch decision.Outcome {
			case domain.OutcomeLoading:
				return respondLoading(c)
			case domain.OutcomeFallback:
				logger.FromContext(ctx).DebugContext(ctx, "guard fallback", "reason", decision.Reason)
				return o.fallback(c)
			case domain.OutcomeRedirect:
				logger.FromContext(ctx).InfoContext(ctx, "guard redirect",
					"destination", decision.Intent.Destination,
					"reason", decision.Reason,
				)
				intent := *decision.Intent
				if nav := NavigatorFrom(ctx); nav != nil {
					nav.Navigate(intent)
					intent, _ = nav.Intent()
				}
				return RespondWithIntent(c, intent)
			default:
				return next(c)
			}
		}
	}
}

func respondLoading(c echo.Context) error {
	c.Response().Header().Set("Retry-After", "1")
	if WantsJSON(c.Request()) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	}
	return c.HTML(http.StatusServiceUnavailable, loadingPage)
}

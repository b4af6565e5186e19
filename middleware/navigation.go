package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

// Navigator collects the redirect decided for one request. Only the first
// intent is kept, so a request navigates at most once.
type Navigator struct {
	mu     sync.Mutex
	intent *domain.RedirectIntent
}

// Navigate records intent unless one is already pending. It reports
// whether intent was recorded.
func (n *Navigator) Navigate(intent domain.RedirectIntent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.intent != nil {
		return false
	}
	n.intent = &intent
	return true
}

// Intent returns the pending intent.
func (n *Navigator) Intent() (domain.RedirectIntent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.intent == nil {
		return domain.RedirectIntent{}, false
	}
	return *n.intent, true
}

type navigatorKey struct{}

// WithNavigator attaches n to ctx.
func WithNavigator(ctx context.Context, n *Navigator) context.Context {
	return context.WithValue(ctx, navigatorKey{}, n)
}

// NavigatorFrom returns the request's Navigator, or nil outside a request.
func NavigatorFrom(ctx context.Context) *Navigator {
	n, _ := ctx.Value(navigatorKey{}).(*Navigator)
	return n
}

// Navigation gives every request a Navigator. If a handler leaves an intent
// pending without writing a response, the intent becomes the response.
func Navigation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			nav := &Navigator{}
			c.SetRequest(c.Request().WithContext(WithNavigator(c.Request().Context(), nav)))

			err := next(c)

			if intent, ok := nav.Intent(); ok && !c.Response().Committed {
				return RespondWithIntent(c, intent)
			}
			return err
		}
	}
}

// NavigateOnForbidden is the ForbiddenHandler that sends the browser to the
// access-denied view.
func NavigateOnForbidden(ctx context.Context, denied *domain.AuthorizationDeniedError) {
	nav := NavigatorFrom(ctx)
	if nav == nil {
		logger.FromContext(ctx).WarnContext(ctx, "authorization denied outside a request", "url", denied.URL)
		return
	}
	nav.Navigate(domain.ForbiddenIntent(denied.Message, denied.URL))
}

// navigationResponse is the JSON form of a redirect for XHR clients.
type navigationResponse struct {
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
	URL      string `json:"url,omitempty"`
}

// RespondWithIntent writes intent as a 303 for browsers and as a JSON
// envelope for API clients.
func RespondWithIntent(c echo.Context, intent domain.RedirectIntent) error {
	location := intent.Location()
	if !WantsJSON(c.Request()) {
		return c.Redirect(http.StatusSeeOther, location)
	}

	status := http.StatusForbidden
	if intent.Destination == domain.LoginRoute {
		status = http.StatusUnauthorized
	}
	return c.JSON(status, navigationResponse{
		Redirect: location,
		Message:  intent.Message,
		URL:      intent.RequestedURL,
	})
}

// WantsJSON reports whether the client expects JSON rather than HTML.
func WantsJSON(r *http.Request) bool {
	accept := r.Header.Get(echo.HeaderAccept)
	switch {
	case strings.Contains(accept, echo.MIMETextHTML):
		return false
	case strings.Contains(accept, echo.MIMEApplicationJSON):
		return true
	case r.Header.Get(echo.HeaderXRequestedWith) == "XMLHttpRequest":
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/auth/")
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"church-admin-gateway/middleware"
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// errNavigated marks an upstream 403 that was turned into a navigation.
var errNavigated = errors.New("response replaced by navigation")

// ProxyHandler forwards /api/* to the church API with the session's bearer
// token.
type ProxyHandler struct {
	proxy *httputil.ReverseProxy
}

// NewProxyHandler creates a proxy to target. transport should be the
// church API client's transport so that 403s reach the forbidden handler.
func NewProxyHandler(target *url.URL, transport http.RoundTripper) *ProxyHandler {
	return &ProxyHandler{proxy: &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.Out.URL.Path = strings.TrimPrefix(r.In.URL.Path, "/api")
			r.Out.URL.RawPath = ""
			r.SetURL(target)
			r.SetXForwarded()

			r.Out.Header.Del("Cookie")
			r.Out.Header.Del("Authorization")
			r.Out.Header.Del(middleware.CSRFHeader)
			if m := middleware.SessionManagerFrom(r.In.Context()); m != nil {
				if token := m.Token(); token != "" {
					r.Out.Header.Set("Authorization", "Bearer "+token)
				}
			}
			otel.GetTextMapPropagator().Inject(r.In.Context(), propagation.HeaderCarrier(r.Out.Header))
		},
		Transport:      transport,
		ModifyResponse: replaceNavigated,
		ErrorHandler:   proxyError,
	}}
}

// Handle serves one proxied request.
func (h *ProxyHandler) Handle(c echo.Context) error {
	h.proxy.ServeHTTP(c.Response(), c.Request())
	return nil
}

// replaceNavigated drops an upstream 403 whose navigation is pending so the
// Navigation middleware can answer instead.
func replaceNavigated(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden {
		return nil
	}
	if nav := middleware.NavigatorFrom(resp.Request.Context()); nav != nil {
		if _, ok := nav.Intent(); ok {
			return errNavigated
		}
	}
	return nil
}

func proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNavigated) || errors.Is(err, context.Canceled) {
		return
	}
	ctx := r.Context()
	logger.FromContext(ctx).ErrorContext(ctx, "church API proxy failed", "path", r.URL.Path, "error", err)

	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"message":"church API unavailable"}`))
}

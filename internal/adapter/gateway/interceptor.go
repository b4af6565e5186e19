package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/metrics"
)

// maxDeniedBody bounds how much of a 403 body is read for its message.
const maxDeniedBody = 64 << 10

type registration struct {
	handler domain.ForbiddenHandler
}

// ForbiddenInterceptor is an http.RoundTripper that reports every 403 from
// the church API to the registered ForbiddenHandler. It never retries and
// never changes the response seen by the caller.
type ForbiddenInterceptor struct {
	next   http.RoundTripper
	logger *slog.Logger

	mu      sync.RWMutex
	current *registration
}

// NewForbiddenInterceptor wraps next. A nil next uses http.DefaultTransport.
func NewForbiddenInterceptor(next http.RoundTripper, logger *slog.Logger) *ForbiddenInterceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	return &ForbiddenInterceptor{next: next, logger: logger}
}

// Register installs h as the handler, replacing any previous one. The
// returned func removes h only if it is still the installed handler.
func (i *ForbiddenInterceptor) Register(h domain.ForbiddenHandler) (unregister func()) {
	reg := &registration{handler: h}
	if h == nil {
		reg = nil
	}

	i.mu.Lock()
	i.current = reg
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if reg != nil && i.current == reg {
			i.current = nil
		}
	}
}

func (i *ForbiddenInterceptor) handler() domain.ForbiddenHandler {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.current == nil {
		return nil
	}
	return i.current.handler
}

// RoundTrip implements http.RoundTripper.
func (i *ForbiddenInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := i.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxDeniedBody))
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}

	denied := &domain.AuthorizationDeniedError{
		Message: deniedMessage(body),
		URL:     req.URL.RequestURI(),
	}
	if readErr != nil {
		i.logger.WarnContext(req.Context(), "failed to read 403 body", "error", readErr)
	}
	i.logger.InfoContext(req.Context(), "church API denied request",
		"url", denied.URL,
		"message", denied.Message,
	)
	metrics.RecordAuthorizationDenied()

	if h := i.handler(); h != nil {
		h(req.Context(), denied)
	}
	return resp, nil
}

// deniedBody covers the error shapes the church API uses for 403s.
type deniedBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

func deniedMessage(body []byte) string {
	var b deniedBody
	if err := json.Unmarshal(body, &b); err != nil {
		return ""
	}
	switch {
	case b.Message != "":
		return b.Message
	case b.Error != "":
		return b.Error
	}

	var errs struct {
		Permission json.RawMessage `json:"permission"`
	}
	if json.Unmarshal(b.Errors, &errs) != nil {
		return ""
	}
	var single string
	if json.Unmarshal(errs.Permission, &single) == nil {
		return single
	}
	var list []string
	if json.Unmarshal(errs.Permission, &list) == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

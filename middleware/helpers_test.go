package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/internal/infrastructure/sessionstore"
	"church-admin-gateway/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-valid-session-secret-at-least-32-chars"

// stubAPI implements domain.AuthAPI with a fixed login result.
type stubAPI struct {
	result *domain.AuthResult
}

func (s *stubAPI) Login(context.Context, domain.Credentials) (*domain.AuthResult, error) {
	return s.result, nil
}

func (s *stubAPI) Register(context.Context, domain.Registration) (*domain.AuthResult, error) {
	return s.result, nil
}

func (s *stubAPI) UpdateProfile(context.Context, string, domain.ProfileUpdate) (*domain.Session, error) {
	return &s.result.User, nil
}

// blockingStore never finishes a read until release is closed.
type blockingStore struct {
	release chan struct{}
}

func (b *blockingStore) Store(context.Context, string, any) {}
func (b *blockingStore) Remove(context.Context, string)     {}
func (b *blockingStore) Retrieve(context.Context, string, any) (bool, error) {
	<-b.release
	return false, nil
}

func newEncryptedStore(t *testing.T) *sessionstore.EncryptedStore {
	t.Helper()
	store, err := sessionstore.NewEncryptedStore(sessionstore.NewMemoryBackend(),
		sessionstore.Options{Secret: testSecret, TTL: time.Hour}, slog.Default())
	require.NoError(t, err)
	return store
}

func anonymousManager(t *testing.T) *usecase.SessionManager {
	t.Helper()
	m := usecase.NewSessionManager("church_admin.session:ctx-1", &stubAPI{}, newEncryptedStore(t), nil, slog.Default())
	m.Restore(context.Background())
	return m
}

func authenticatedManager(t *testing.T, role string, permissions ...string) *usecase.SessionManager {
	t.Helper()
	api := &stubAPI{result: &domain.AuthResult{
		User: domain.Session{
			ID:          "7",
			Name:        "Ruth",
			Email:       "ruth@example.org",
			Role:        role,
			Permissions: domain.NewNameSet(permissions...),
		},
		Token: "tok-7",
	}}
	m := usecase.NewSessionManager("church_admin.session:ctx-1", api, newEncryptedStore(t), nil, slog.Default())
	_, err := m.Login(context.Background(), domain.Credentials{Email: "ruth@example.org", Password: "pw"})
	require.NoError(t, err)
	return m
}

func loadingManager(t *testing.T) *usecase.SessionManager {
	t.Helper()
	store := &blockingStore{release: make(chan struct{})}
	t.Cleanup(func() { close(store.release) })
	return usecase.NewSessionManager("church_admin.session:ctx-1", &stubAPI{}, store, nil, slog.Default())
}

// withManager attaches m to every request, standing in for BrowserContext.
func withManager(m *usecase.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := WithSessionManager(c.Request().Context(), "ctx-1", m)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func serve(e *echo.Echo, method, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const (
	acceptHTML = "text/html,application/xhtml+xml"
	acceptJSON = "application/json"
)

var okHandler = func(c echo.Context) error {
	return c.String(http.StatusOK, "protected content")
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/internal/infrastructure/sessionstore"
	"church-admin-gateway/internal/infrastructure/token"
	"church-admin-gateway/internal/usecase"
	"church-admin-gateway/middleware"
	"church-admin-gateway/utils/validator"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-valid-session-secret-at-least-32-chars"

// fakeAPI implements domain.AuthAPI with overridable behavior.
type fakeAPI struct {
	login         func(domain.Credentials) (*domain.AuthResult, error)
	register      func(domain.Registration) (*domain.AuthResult, error)
	updateProfile func(context.Context, string, domain.ProfileUpdate) (*domain.Session, error)
}

func (f *fakeAPI) Login(_ context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	return f.login(creds)
}

func (f *fakeAPI) Register(_ context.Context, reg domain.Registration) (*domain.AuthResult, error) {
	return f.register(reg)
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, tok string, update domain.ProfileUpdate) (*domain.Session, error) {
	return f.updateProfile(ctx, tok, update)
}

func pastor() domain.Session {
	return domain.Session{
		ID:          "42",
		Name:        "Grace",
		Email:       "grace@example.org",
		Role:        "pastor",
		Permissions: domain.NewNameSet("view-members", "view-events"),
	}
}

func acceptingAPI() *fakeAPI {
	ok := func() (*domain.AuthResult, error) {
		return &domain.AuthResult{User: pastor(), Token: "tok-42"}, nil
	}
	return &fakeAPI{
		login:    func(domain.Credentials) (*domain.AuthResult, error) { return ok() },
		register: func(domain.Registration) (*domain.AuthResult, error) { return ok() },
		updateProfile: func(_ context.Context, _ string, u domain.ProfileUpdate) (*domain.Session, error) {
			s := pastor()
			if u.Name != nil {
				s.Name = *u.Name
			}
			return &s, nil
		},
	}
}

func newManager(t *testing.T, api domain.AuthAPI) *usecase.SessionManager {
	t.Helper()
	store, err := sessionstore.NewEncryptedStore(sessionstore.NewMemoryBackend(),
		sessionstore.Options{Secret: testSecret, TTL: time.Hour}, slog.Default())
	require.NoError(t, err)
	m := usecase.NewSessionManager(usecase.SessionKey("ctx-1"), api, store, nil, slog.Default())
	m.Restore(context.Background())
	return m
}

func signedInManager(t *testing.T, api domain.AuthAPI) *usecase.SessionManager {
	t.Helper()
	m := newManager(t, api)
	_, err := m.Login(context.Background(), domain.Credentials{Email: "grace@example.org", Password: "pw"})
	require.NoError(t, err)
	return m
}

func newPages(t *testing.T, contactEmail string) *PageHandler {
	t.Helper()
	return NewPageHandler(
		usecase.NewGenerateCSRF(token.NewHMACCSRF(testSecret), slog.Default()),
		usecase.NewCheckAccess(),
		contactEmail,
	)
}

// newEcho builds an echo instance with the renderer and the request-scoped
// middleware handlers depend on.
func newEcho(t *testing.T, m *usecase.SessionManager) *echo.Echo {
	t.Helper()
	renderer, err := NewRenderer()
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = renderer
	e.Use(middleware.Navigation())
	if m != nil {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				ctx := middleware.WithSessionManager(c.Request().Context(), "ctx-1", m)
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}
		})
	}
	return e
}

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	return NewAuthHandler(validator.New(), newPages(t, ""), 50*time.Millisecond)
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doForm(e *echo.Echo, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func getHTML(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(echo.HeaderAccept, "text/html")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

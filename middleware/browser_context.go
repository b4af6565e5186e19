package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"church-admin-gateway/internal/usecase"
	"church-admin-gateway/utils/logger"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/hkdf"
)

// BrowserContextCookie names the cookie that identifies a browser context.
const BrowserContextCookie = "church_admin_ctx"

const contextIDValue = "cid"

type contextIDKey struct{}

type sessionManagerKey struct{}

// NewCookieStore returns the signed and encrypted cookie store for the
// browser-context cookie. Keys are derived from secret.
func NewCookieStore(secret string, secure bool, maxAge time.Duration) (*sessions.CookieStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("browser context secret is empty")
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("church-admin-gateway browser context"))
	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("derive hash key: %w", err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, fmt.Errorf("derive block key: %w", err)
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

// BrowserContext identifies the browser behind each request and attaches
// its SessionManager to the request context. Browsers without a valid
// cookie get a fresh context ID.
func BrowserContext(store sessions.Store, managers *usecase.SessionManagers) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// A decode error still yields a usable new session.
			sess, _ := store.Get(req, BrowserContextCookie)

			id, _ := sess.Values[contextIDValue].(string)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
				sess.Values[contextIDValue] = id
				if err := sess.Save(req, c.Response()); err != nil {
					logger.FromContext(req.Context()).ErrorContext(req.Context(),
						"failed to save browser context cookie", "error", err)
					return echo.NewHTTPError(http.StatusInternalServerError, "browser context unavailable")
				}
			}

			ctx := context.WithValue(req.Context(), contextIDKey{}, id)
			ctx = context.WithValue(ctx, sessionManagerKey{}, managers.Get(id))
			ctx = logger.WithBrowserContextID(ctx, id)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// ContextID returns the browser-context ID of the request.
func ContextID(ctx context.Context) string {
	id, _ := ctx.Value(contextIDKey{}).(string)
	return id
}

// SessionManagerFrom returns the SessionManager of the request's browser context.
func SessionManagerFrom(ctx context.Context) *usecase.SessionManager {
	m, _ := ctx.Value(sessionManagerKey{}).(*usecase.SessionManager)
	return m
}

// WithSessionManager attaches m to ctx. Used by tests and by callers that
// resolve the browser context themselves.
func WithSessionManager(ctx context.Context, contextID string, m *usecase.SessionManager) context.Context {
	ctx = context.WithValue(ctx, contextIDKey{}, contextID)
	return context.WithValue(ctx, sessionManagerKey{}, m)
}

package domain

import (
	"context"
	"time"
)

// AuthAPI is the church REST API's authentication surface.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	Register(ctx context.Context, reg Registration) (*AuthResult, error)
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*Session, error)
}

// SessionStore persists one opaque value per key, encrypted at rest.
type SessionStore interface {
	Store(ctx context.Context, key string, value any)
	Retrieve(ctx context.Context, key string, dst any) (bool, error)
	Remove(ctx context.Context, key string)
}

// SessionBackend is the raw key/value storage behind a SessionStore.
type SessionBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// TokenInspector reads expiry information from an API bearer token.
type TokenInspector interface {
	Inspect(token string) (TokenInfo, error)
}

// CSRFTokenGenerator issues and checks CSRF tokens bound to a browser context.
type CSRFTokenGenerator interface {
	Generate(contextID string) (string, error)
	Verify(contextID, token string) error
}

// Cache holds values by key with expiry.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
}

// ForbiddenHandler receives every 403 seen by the API client.
type ForbiddenHandler func(ctx context.Context, denied *AuthorizationDeniedError)

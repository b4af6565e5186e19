package usecase

import (
	"log/slog"
	"sync"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/metrics"
)

// SessionManagers hands out one SessionManager per browser context.
type SessionManagers struct {
	mu        sync.Mutex
	cache     domain.Cache[*SessionManager]
	api       domain.AuthAPI
	store     domain.SessionStore
	inspector domain.TokenInspector
	logger    *slog.Logger
}

// NewSessionManagers creates a registry over cache. The cache should call
// DisposeEvicted for entries it drops.
func NewSessionManagers(cache domain.Cache[*SessionManager], api domain.AuthAPI, store domain.SessionStore, inspector domain.TokenInspector, logger *slog.Logger) *SessionManagers {
	return &SessionManagers{
		cache:     cache,
		api:       api,
		store:     store,
		inspector: inspector,
		logger:    logger,
	}
}

// Get returns the manager for contextID, creating it on first use.
func (r *SessionManagers) Get(contextID string) *SessionManager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, found := r.cache.Get(contextID); found && !m.Disposed() {
		return m
	}
	m := NewSessionManager(SessionKey(contextID), r.api, r.store, r.inspector,
		r.logger.With("browser_context_id", contextID))
	r.cache.Set(contextID, m)
	metrics.BrowserContextOpened()
	return m
}

// DisposeEvicted is the eviction callback for the manager cache.
func DisposeEvicted(_ string, m *SessionManager) {
	m.Dispose()
	metrics.BrowserContextClosed()
}

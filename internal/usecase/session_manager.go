package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/metrics"
)

// SessionKeyPrefix namespaces session entries in the encrypted store.
const SessionKeyPrefix = "church_admin.session:"

// SessionKey returns the store key for a browser context.
func SessionKey(contextID string) string {
	return SessionKeyPrefix + contextID
}

// Snapshot is a point-in-time copy of a manager's state. User never carries
// the API token.
type Snapshot struct {
	State domain.State
	User  *domain.Session
}

// Authenticated reports whether the snapshot holds a signed-in user.
func (s Snapshot) Authenticated() bool {
	return s.State == domain.StateAuthenticated && s.User != nil
}

// SessionManager owns the session of one browser context.
//
// Writes (login, logout, register, profile update) are applied in completion
// order and the last one wins. The initial restore from the store is dropped
// if any write completes while it is in flight. After Dispose, completed
// operations leave state and store untouched.
type SessionManager struct {
	key       string
	api       domain.AuthAPI
	store     domain.SessionStore
	inspector domain.TokenInspector
	logger    *slog.Logger
	now       func() time.Time

	// storeMu orders store I/O. A write is skipped when a newer generation
	// exists, so the store ends on the same value as memory.
	storeMu sync.Mutex

	// mu guards the fields below. It is never held across store I/O.
	mu         sync.Mutex
	state      domain.State
	session    *domain.Session
	generation uint64
	disposed   bool

	restoreOnce sync.Once
	restored    chan struct{}
}

// NewSessionManager creates a manager for the session stored under key.
// inspector may be nil, in which case token expiry is not checked.
func NewSessionManager(key string, api domain.AuthAPI, store domain.SessionStore, inspector domain.TokenInspector, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		key:       key,
		api:       api,
		store:     store,
		inspector: inspector,
		logger:    logger,
		now:       time.Now,
		state:     domain.StateUninitialized,
		restored:  make(chan struct{}),
	}
}

// Restore loads the persisted session on first use and waits until it is
// loaded or ctx is done, whichever comes first. It returns the state at that
// moment, which is StateLoading if ctx expired before the load finished.
func (m *SessionManager) Restore(ctx context.Context) domain.State {
	m.restoreOnce.Do(func() {
		m.mu.Lock()
		if m.state != domain.StateUninitialized || m.disposed {
			m.mu.Unlock()
			close(m.restored)
			return
		}
		m.state = domain.StateLoading
		gen := m.generation
		m.mu.Unlock()

		go m.load(context.WithoutCancel(ctx), gen)
	})

	select {
	case <-m.restored:
	case <-ctx.Done():
	}
	return m.State()
}

func (m *SessionManager) load(ctx context.Context, gen uint64) {
	defer close(m.restored)

	var stored domain.Session
	found, err := m.store.Retrieve(ctx, m.key, &stored)

	var (
		session *domain.Session
		clear   bool
		result  string
	)
	switch {
	case errors.Is(err, domain.ErrCorruptedSessionData):
		m.logger.WarnContext(ctx, "discarding corrupted session", "error", err)
		clear, result = true, "corrupted"
	case err != nil:
		m.logger.ErrorContext(ctx, "session store unavailable during restore", "error", err)
		result = "unavailable"
	case !found:
		result = "absent"
	case !stored.Valid():
		m.logger.WarnContext(ctx, "discarding incomplete session")
		clear, result = true, "corrupted"
	case m.tokenExpired(stored.Token):
		m.logger.InfoContext(ctx, "stored session token expired", "user_id", stored.ID)
		clear, result = true, "expired"
	default:
		session, result = &stored, "restored"
	}

	m.mu.Lock()
	if m.disposed || m.generation != gen {
		m.mu.Unlock()
		metrics.RecordRestore("superseded")
		return
	}
	m.session = session
	if session != nil {
		m.state = domain.StateAuthenticated
	} else {
		m.state = domain.StateAnonymous
	}
	m.mu.Unlock()
	metrics.RecordRestore(result)

	if clear {
		m.persist(ctx, gen, nil)
	}
}

func (m *SessionManager) tokenExpired(token string) bool {
	if m.inspector == nil {
		return false
	}
	info, err := m.inspector.Inspect(token)
	if err != nil {
		return true
	}
	return info.Expired(m.now())
}

// Login authenticates against the church API and persists the session.
// Failures return a *domain.FlowError and leave state and store untouched.
func (m *SessionManager) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	start := time.Now()
	res, err := m.api.Login(ctx, creds)
	if err != nil {
		m.record("login", "failure", start)
		return nil, flowError(domain.ErrAuthenticationFailed, "Invalid email or password.", err)
	}
	session, err := sessionFrom(res, domain.ErrAuthenticationFailed)
	if err != nil {
		m.record("login", "failure", start)
		return nil, err
	}

	out, err := m.commit(ctx, session)
	if err != nil {
		m.record("login", "disposed", start)
		return nil, err
	}
	m.record("login", "success", start)
	m.logger.InfoContext(ctx, "user logged in", "user_id", session.ID)
	return out, nil
}

// Register creates an account and signs the new user in.
func (m *SessionManager) Register(ctx context.Context, reg domain.Registration) (*domain.Session, error) {
	start := time.Now()
	res, err := m.api.Register(ctx, reg)
	if err != nil {
		m.record("register", "failure", start)
		return nil, flowError(domain.ErrRegistrationFailed, "Registration failed. Please check your details.", err)
	}
	session, err := sessionFrom(res, domain.ErrRegistrationFailed)
	if err != nil {
		m.record("register", "failure", start)
		return nil, err
	}

	out, err := m.commit(ctx, session)
	if err != nil {
		m.record("register", "disposed", start)
		return nil, err
	}
	m.record("register", "success", start)
	m.logger.InfoContext(ctx, "user registered", "user_id", session.ID)
	return out, nil
}

// Logout forgets the session in memory and in the store.
func (m *SessionManager) Logout(ctx context.Context) error {
	start := time.Now()
	if _, err := m.commit(ctx, nil); err != nil {
		m.record("logout", "disposed", start)
		return err
	}
	m.record("logout", "success", start)
	return nil
}

// UpdateProfile sends changed profile fields and replaces the session with
// the server's copy of the user.
func (m *SessionManager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Session, error) {
	start := time.Now()
	m.mu.Lock()
	current := m.session
	m.mu.Unlock()
	if current == nil {
		m.record("update_profile", "failure", start)
		return nil, domain.NewFlowError(domain.ErrProfileUpdateFailed,
			"You must be signed in to update your profile.", domain.ErrNotAuthenticated)
	}

	user, err := m.api.UpdateProfile(ctx, current.Token, update)
	if err != nil {
		m.record("update_profile", "failure", start)
		return nil, flowError(domain.ErrProfileUpdateFailed, "Profile update failed.", err)
	}
	next := user.Clone()
	if next != nil {
		next.Token = current.Token
	}
	if !next.Valid() {
		m.record("update_profile", "failure", start)
		return nil, domain.NewFlowError(domain.ErrProfileUpdateFailed,
			"Profile update failed.", domain.ErrCorruptedSessionData)
	}

	out, err := m.commit(ctx, next)
	if err != nil {
		m.record("update_profile", "disposed", start)
		return nil, err
	}
	m.record("update_profile", "success", start)
	return out, nil
}

// commit installs session (nil for signed out) as the current state.
func (m *SessionManager) commit(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, domain.ErrContextDisposed
	}
	m.generation++
	gen := m.generation
	m.session = session
	if session == nil {
		m.state = domain.StateAnonymous
	} else {
		m.state = domain.StateAuthenticated
	}
	m.mu.Unlock()

	m.persist(ctx, gen, session)
	return publicCopy(session), nil
}

// persist writes session (nil removes the entry) unless a newer generation
// has been committed since gen.
func (m *SessionManager) persist(ctx context.Context, gen uint64, session *domain.Session) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	current := m.generation == gen
	m.mu.Unlock()
	if !current {
		return
	}

	if session == nil {
		m.store.Remove(ctx, m.key)
		return
	}
	m.store.Store(ctx, m.key, session)
}

// State returns the current lifecycle state.
func (m *SessionManager) State() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session without its token, or nil.
func (m *SessionManager) Session() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return publicCopy(m.session)
}

// Snapshot returns state and session read together.
func (m *SessionManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, User: publicCopy(m.session)}
}

// Token returns the API bearer token of the current session.
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

// Dispose detaches the manager from its browser context.
func (m *SessionManager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
}

// Disposed reports whether Dispose was called.
func (m *SessionManager) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

func (m *SessionManager) record(operation, result string, start time.Time) {
	metrics.RecordSessionOperation(operation, result, time.Since(start).Seconds())
}

func publicCopy(s *domain.Session) *domain.Session {
	c := s.Clone()
	if c != nil {
		c.Token = ""
	}
	return c
}

func sessionFrom(res *domain.AuthResult, kind error) (*domain.Session, error) {
	if res == nil {
		return nil, domain.NewFlowError(kind, "Unexpected response from server.", domain.ErrCorruptedSessionData)
	}
	session := res.User.Clone()
	session.Token = res.Token
	if !session.Valid() || session.Token == "" {
		return nil, domain.NewFlowError(kind, "Unexpected response from server.", domain.ErrCorruptedSessionData)
	}
	return session, nil
}

// flowError keeps a FlowError from the API client as-is and wraps anything
// else under kind with a generic message.
func flowError(kind error, message string, err error) error {
	var fe *domain.FlowError
	if errors.As(err, &fe) {
		if errors.Is(fe, kind) {
			return fe
		}
		return &domain.FlowError{Kind: kind, Message: fe.Message, Fields: fe.Fields, Err: err}
	}
	if errors.Is(err, domain.ErrAPIUnavailable) {
		message = "The server could not be reached. Please try again."
	}
	return domain.NewFlowError(kind, message, err)
}

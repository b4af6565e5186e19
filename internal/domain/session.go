package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// State is the lifecycle phase of a browser context's session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Settled reports whether a redirect decision can be made in this state.
func (s State) Settled() bool {
	return s == StateAnonymous || s == StateAuthenticated
}

// NameSet is an unordered set of permission or role names.
type NameSet map[string]struct{}

// NewNameSet builds a set from names, skipping empty strings.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// ContainsAll reports whether every name in required is present.
func (s NameSet) ContainsAll(required NameSet) bool {
	return len(s.Missing(required)) == 0
}

// Missing returns the required names absent from s, sorted.
func (s NameSet) Missing(required NameSet) []string {
	var missing []string
	for name := range required {
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// MarshalJSON encodes the set as a sorted array, or null for a nil set.
func (s NameSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes null to a nil set and an array to a non-nil set.
func (s *NameSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	if names == nil {
		*s = nil
		return nil
	}
	*s = NewNameSet(names...)
	return nil
}

// Session is the authenticated identity of one browser context.
// A zero ID means the value is not a usable session.
type Session struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Permissions     NameSet    `json:"permissions"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	// Token is the bearer credential for the church API. It is persisted
	// with the session but never rendered to the browser.
	Token string `json:"token,omitempty"`
}

// Valid reports whether the session is fully populated.
func (s *Session) Valid() bool {
	return s != nil && s.ID != "" && s.Email != ""
}

// Clone returns a deep copy so callers cannot mutate manager state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Permissions = NewNameSet(s.Permissions.Sorted()...)
	if s.EmailVerifiedAt != nil {
		t := *s.EmailVerifiedAt
		c.EmailVerifiedAt = &t
	}
	return &c
}

// Credentials is the login form payload.
type Credentials struct {
	Email    string
	Password string
}

// Registration is the sign-up payload.
type Registration struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// ProfileUpdate holds the changed profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name            *string
	Email           *string
	CurrentPassword *string
	Password        *string
}

// AuthResult is what the church API returns on login and registration.
type AuthResult struct {
	User  Session
	Token string
}

// TokenInfo is what can be learned about an API bearer token.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

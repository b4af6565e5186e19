package domain

import (
	"errors"
	"fmt"
)

// Session flow errors.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrProfileUpdateFailed  = errors.New("profile update failed")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrSessionExpired       = errors.New("session expired")
	ErrContextDisposed      = errors.New("browser context disposed")
)

// Storage errors.
var (
	ErrCorruptedSessionData = errors.New("corrupted session data")
	ErrStoreUnavailable     = errors.New("session store unavailable")
)

// Authorization errors.
var (
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// Token errors.
var (
	ErrCSRFSecretMissing = errors.New("CSRF secret not configured")
	ErrCSRFTokenInvalid  = errors.New("CSRF token invalid")
)

// External service errors.
var (
	ErrAPIUnavailable = errors.New("church API unavailable")
)

// Rate limiting errors.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
)

// FlowError is a failed login, registration or profile update. Message is
// safe to show to the user; Fields carries per-field validation detail.
type FlowError struct {
	Kind    error
	Message string
	Fields  map[string]string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewFlowError builds a FlowError of the given kind.
func NewFlowError(kind error, message string, cause error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Err: cause}
}

// AuthorizationDeniedError is an HTTP 403 from the church API.
type AuthorizationDeniedError struct {
	Message string
	URL     string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: %s", ErrAuthorizationDenied, e.URL)
	}
	return fmt.Sprintf("%v: %s: %s", ErrAuthorizationDenied, e.URL, e.Message)
}

func (e *AuthorizationDeniedError) Is(target error) bool {
	return target == ErrAuthorizationDenied
}

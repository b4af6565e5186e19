package domain

import "net/url"

// Navigation routes forming the access-control boundary.
const (
	LoginRoute     = "/login"
	LandingRoute   = "/dashboard"
	ForbiddenRoute = "/access-denied"
)

// Constraints configures one protected region. It is built per route and
// never mutated afterwards.
type Constraints struct {
	RequireAuth  bool
	RequireGuest bool
	// Permissions must all be held by the session.
	Permissions NameSet
	// Roles lists acceptable roles; any one match suffices.
	Roles NameSet
}

// Outcome is what a guard does with a request.
type Outcome int

const (
	OutcomeLoading Outcome = iota
	OutcomeRender
	OutcomeRedirect
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating Constraints against a session.
// Intent is set for OutcomeRedirect and, for diagnostics, OutcomeFallback.
type Decision struct {
	Outcome Outcome
	Intent  *RedirectIntent
	Reason  string
}

// RedirectIntent describes where navigation should go and why.
type RedirectIntent struct {
	Destination  string
	Message      string
	RequestedURL string
	Permission   string
}

// Location renders the intent as a URL. Only the access-denied route
// carries its context as query parameters.
func (r RedirectIntent) Location() string {
	if r.Destination != ForbiddenRoute {
		return r.Destination
	}
	q := url.Values{}
	if r.Message != "" {
		q.Set("message", r.Message)
	}
	if r.RequestedURL != "" {
		q.Set("url", r.RequestedURL)
	}
	if len(q) == 0 {
		return r.Destination
	}
	return r.Destination + "?" + q.Encode()
}

// LoginIntent sends an anonymous user to the login page.
func LoginIntent() RedirectIntent {
	return RedirectIntent{Destination: LoginRoute}
}

// LandingIntent sends a user to the default authenticated page.
func LandingIntent() RedirectIntent {
	return RedirectIntent{Destination: LandingRoute}
}

// ForbiddenIntent sends a user to the access-denied view with context.
func ForbiddenIntent(message, requestedURL string) RedirectIntent {
	return RedirectIntent{
		Destination:  ForbiddenRoute,
		Message:      message,
		RequestedURL: requestedURL,
	}
}

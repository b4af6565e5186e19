package usecase

import (
	"fmt"
	"strings"

	"church-admin-gateway/internal/domain"
)

// CheckAccess decides what a guarded route does for a given session.
type CheckAccess struct{}

// NewCheckAccess creates a new CheckAccess usecase.
func NewCheckAccess() *CheckAccess {
	return &CheckAccess{}
}

// Execute evaluates constraints against the session. While the session is
// still loading the decision is always OutcomeLoading. When a fallback is
// available it replaces every redirect.
func (uc *CheckAccess) Execute(state domain.State, session *domain.Session, c domain.Constraints, hasFallback bool) domain.Decision {
	if !state.Settled() {
		return domain.Decision{Outcome: domain.OutcomeLoading, Reason: "session " + state.String()}
	}

	authenticated := state == domain.StateAuthenticated && session != nil

	deny := func(intent domain.RedirectIntent, reason string) domain.Decision {
		if hasFallback {
			return domain.Decision{Outcome: domain.OutcomeFallback, Intent: &intent, Reason: reason}
		}
		return domain.Decision{Outcome: domain.OutcomeRedirect, Intent: &intent, Reason: reason}
	}

	if c.RequireGuest && authenticated {
		return deny(domain.LandingIntent(), "already authenticated")
	}
	if !c.RequireAuth {
		return domain.Decision{Outcome: domain.OutcomeRender}
	}
	if !authenticated {
		return deny(domain.LoginIntent(), "not authenticated")
	}

	if missing := session.Permissions.Missing(c.Permissions); len(missing) > 0 {
		intent := domain.LandingIntent()
		intent.Permission = missing[0]
		return deny(intent, "missing permission "+strings.Join(missing, ","))
	}
	if len(c.Roles) > 0 && !c.Roles.Has(session.Role) {
		return deny(domain.LandingIntent(),
			fmt.Sprintf("role %q not in %s", session.Role, strings.Join(c.Roles.Sorted(), ",")))
	}

	return domain.Decision{Outcome: domain.OutcomeRender}
}

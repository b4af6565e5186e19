package handler

import (
	"net/http"
	"net/url"
	"strings"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/internal/usecase"
	"church-admin-gateway/middleware"
	"church-admin-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

// pageData is the view model shared by all templates.
type pageData struct {
	Title     string
	User      *domain.Session
	CSRFToken string

	Error  string
	Fields map[string]string
	Name   string
	Email  string

	Section  string
	Sections []Section

	Message     string
	URL         string
	ContactHref string
}

// PageHandler renders the server-side pages.
type PageHandler struct {
	csrf         *usecase.GenerateCSRF
	check        *usecase.CheckAccess
	contactEmail string
}

// NewPageHandler creates a page handler. contactEmail is the administrator
// address offered on the access-denied page; empty hides the link.
func NewPageHandler(csrf *usecase.GenerateCSRF, check *usecase.CheckAccess, contactEmail string) *PageHandler {
	return &PageHandler{csrf: csrf, check: check, contactEmail: contactEmail}
}

// Login renders the sign-in form.
func (h *PageHandler) Login(c echo.Context) error {
	return h.render(c, http.StatusOK, "login", pageData{Title: "Sign in"})
}

// Register renders the sign-up form.
func (h *PageHandler) Register(c echo.Context) error {
	return h.render(c, http.StatusOK, "register", pageData{Title: "Register"})
}

// Dashboard renders the landing page with the sections the user may open.
func (h *PageHandler) Dashboard(c echo.Context) error {
	user := currentUser(c)
	var visible []Section
	for _, s := range Sections() {
		d := h.check.Execute(domain.StateAuthenticated, user, s.Constraints, false)
		if d.Outcome == domain.OutcomeRender {
			visible = append(visible, s)
		}
	}
	return h.render(c, http.StatusOK, "dashboard", pageData{Title: "Dashboard", Sections: visible})
}

// Profile renders the profile form.
func (h *PageHandler) Profile(c echo.Context) error {
	return h.render(c, http.StatusOK, "profile", pageData{Title: "Profile"})
}

// AccessDenied renders the forbidden view from the message and url query
// parameters.
func (h *PageHandler) AccessDenied(c echo.Context) error {
	message := c.QueryParam("message")
	requested := c.QueryParam("url")
	return h.render(c, http.StatusForbidden, "access_denied", pageData{
		Title:       "Access denied",
		Message:     message,
		URL:         requested,
		ContactHref: contactHref(h.contactEmail, message, requested),
	})
}

// Section renders the shell the SPA mounts into for s.
func (h *PageHandler) Section(s Section) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.render(c, http.StatusOK, "section", pageData{Title: s.Title, Section: s.Slug})
	}
}

// Restricted is the fallback rendered in place of s when access is refused.
func (h *PageHandler) Restricted(s Section) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.render(c, http.StatusForbidden, "restricted", pageData{
			Title:       s.Title,
			ContactHref: contactHref(h.contactEmail, "Access to "+s.Title+" was refused.", c.Request().URL.RequestURI()),
		})
	}
}

func (h *PageHandler) render(c echo.Context, status int, name string, data pageData) error {
	ctx := c.Request().Context()
	if data.User == nil {
		data.User = currentUser(c)
	}
	if data.CSRFToken == "" {
		token, err := h.csrf.Execute(ctx, middleware.ContextID(ctx))
		if err != nil {
			logger.FromContext(ctx).ErrorContext(ctx, "page rendered without CSRF token", "page", name, "error", err)
		}
		data.CSRFToken = token
	}
	return c.Render(status, name, data)
}

func currentUser(c echo.Context) *domain.Session {
	if m := middleware.SessionManagerFrom(c.Request().Context()); m != nil {
		return m.Session()
	}
	return nil
}

// contactHref builds a mailto link pre-filled with the denial context.
func contactHref(email, message, requestedURL string) string {
	if email == "" {
		return ""
	}
	body := "I was denied access"
	if requestedURL != "" {
		body += " to " + requestedURL
	}
	body += "."
	if message != "" {
		body += "\n\nMessage: " + message
	}

	q := url.Values{}
	q.Set("subject", "Access request")
	q.Set("body", body)
	// Mail clients expect %20 rather than + for spaces.
	return "mailto:" + email + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}

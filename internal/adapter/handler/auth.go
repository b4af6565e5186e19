package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"church-admin-gateway/internal/domain"
	"church-admin-gateway/internal/usecase"
	"church-admin-gateway/middleware"
	"church-admin-gateway/utils/logger"
	"church-admin-gateway/utils/validator"

	"github.com/labstack/echo/v4"
)

// AuthHandler serves the /auth endpoints on top of the browser context's
// SessionManager.
type AuthHandler struct {
	validate       *validator.Validator
	pages          *PageHandler
	restoreTimeout time.Duration
}

// NewAuthHandler creates an auth handler. Form posts that fail are
// re-rendered through pages.
func NewAuthHandler(v *validator.Validator, pages *PageHandler, restoreTimeout time.Duration) *AuthHandler {
	return &AuthHandler{validate: v, pages: pages, restoreTimeout: restoreTimeout}
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type registerRequest struct {
	Name                 string `json:"name" form:"name" validate:"required,max=255"`
	Email                string `json:"email" form:"email" validate:"required,email,max=255"`
	Password             string `json:"password" form:"password" validate:"required,min=8,max=255,password"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" validate:"required,eqfield=Password"`
}

type profileRequest struct {
	Name            *string `json:"name,omitempty" form:"name" validate:"omitempty,min=1,max=255"`
	Email           *string `json:"email,omitempty" form:"email" validate:"omitempty,email,max=255"`
	CurrentPassword *string `json:"current_password,omitempty" form:"current_password" validate:"required_with=Password"`
	Password        *string `json:"password,omitempty" form:"password" validate:"omitempty,min=8,max=255,password"`
}

type userResponse struct {
	User     *domain.Session `json:"user"`
	Redirect string          `json:"redirect,omitempty"`
}

type sessionResponse struct {
	State         string          `json:"state"`
	Authenticated bool            `json:"authenticated"`
	User          *domain.Session `json:"user"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	manager, err := sessionManager(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	form := pageData{Title: "Sign in", Email: req.Email}
	if err := h.validate.Validate(req); err != nil {
		return h.flowFailed(c, "login", form, err)
	}

	user, err := manager.Login(c.Request().Context(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return h.flowFailed(c, "login", form, err)
	}
	return signedIn(c, user)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	manager, err := sessionManager(c)
	if err != nil {
		return err
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	form := pageData{Title: "Register", Name: req.Name, Email: req.Email}
	if err := h.validate.Validate(req); err != nil {
		return h.flowFailed(c, "register", form, err)
	}

	user, err := manager.Register(c.Request().Context(), domain.Registration{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		return h.flowFailed(c, "register", form, err)
	}
	return signedIn(c, user)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	manager, err := sessionManager(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := manager.Logout(ctx); err != nil {
		return mapDomainError(err)
	}
	logger.FromContext(ctx).InfoContext(ctx, "user logged out")

	if middleware.WantsJSON(c.Request()) {
		return c.JSON(http.StatusOK, map[string]string{"redirect": domain.LoginRoute})
	}
	return c.Redirect(http.StatusSeeOther, domain.LoginRoute)
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c echo.Context) error {
	manager, err := sessionManager(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.restoreTimeout)
	manager.Restore(ctx)
	cancel()

	snap := manager.Snapshot()
	return c.JSON(http.StatusOK, sessionResponse{
		State:         snap.State.String(),
		Authenticated: snap.Authenticated(),
		User:          snap.User,
	})
}

// UpdateProfile handles PUT /auth/profile.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	manager, err := sessionManager(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	form := pageData{Title: "Profile"}
	if err := h.validate.Validate(req); err != nil {
		return h.flowFailed(c, "profile", form, err)
	}

	user, err := manager.UpdateProfile(c.Request().Context(), domain.ProfileUpdate(req))
	if err != nil {
		return h.flowFailed(c, "profile", form, err)
	}

	if middleware.WantsJSON(c.Request()) {
		return c.JSON(http.StatusOK, userResponse{User: user})
	}
	return c.Redirect(http.StatusSeeOther, "/profile")
}

// flowFailed answers a failed login, registration or profile update. A 403
// from the church API has already produced a navigation, which is left
// for the Navigation middleware to send.
func (h *AuthHandler) flowFailed(c echo.Context, page string, form pageData, err error) error {
	if navigationPending(c, err) {
		return nil
	}

	ctx := c.Request().Context()
	status := flowStatus(err)
	logger.FromContext(ctx).InfoContext(ctx, "auth flow failed", "page", page, "status", status, "error", err)

	body := newFlowBody(err)
	if middleware.WantsJSON(c.Request()) {
		return c.JSON(status, body)
	}
	form.Error = body.Error
	form.Fields = body.Fields
	return h.pages.render(c, status, page, form)
}

func signedIn(c echo.Context, user *domain.Session) error {
	if middleware.WantsJSON(c.Request()) {
		return c.JSON(http.StatusOK, userResponse{User: user, Redirect: domain.LandingRoute})
	}
	return c.Redirect(http.StatusSeeOther, domain.LandingRoute)
}

func sessionManager(c echo.Context) (*usecase.SessionManager, error) {
	m := middleware.SessionManagerFrom(c.Request().Context())
	if m == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "browser context missing")
	}
	return m, nil
}

// navigationPending reports whether err is an authorization denial that
// already queued a navigation for this request.
func navigationPending(c echo.Context, err error) bool {
	if !errors.Is(err, domain.ErrAuthorizationDenied) {
		return false
	}
	nav := middleware.NavigatorFrom(c.Request().Context())
	if nav == nil {
		return false
	}
	_, pending := nav.Intent()
	return pending
}

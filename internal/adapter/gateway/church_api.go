package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"church-admin-gateway/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ChurchAPI implements domain.AuthAPI against the church REST API.
type ChurchAPI struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewChurchAPI creates a client for the API at baseURL. transport is
// normally a ForbiddenInterceptor; nil uses a tuned default transport.
func NewChurchAPI(baseURL string, timeout time.Duration, transport http.RoundTripper) (*ChurchAPI, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid church API URL %q", baseURL)
	}
	if transport == nil {
		transport = NewTransport()
	}

	return &ChurchAPI{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// NewTransport returns the pooled transport used for church API calls.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
}

// BaseURL returns the API root.
func (g *ChurchAPI) BaseURL() *url.URL {
	u := *g.baseURL
	return &u
}

// Transport returns the round tripper all API traffic goes through.
func (g *ChurchAPI) Transport() http.RoundTripper {
	return g.httpClient.Transport
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type profileRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	CurrentPassword *string `json:"current_password,omitempty"`
	Password        *string `json:"password,omitempty"`
}

// Login exchanges credentials for a user and bearer token.
func (g *ChurchAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var out authResponse
	body := loginRequest{Email: creds.Email, Password: creds.Password}
	if err := g.do(ctx, http.MethodPost, "/auth/login", "", body, &out, domain.ErrAuthenticationFailed); err != nil {
		return nil, err
	}
	return out.result(domain.ErrAuthenticationFailed)
}

// Register creates an account and returns the new user and bearer token.
func (g *ChurchAPI) Register(ctx context.Context, reg domain.Registration) (*domain.AuthResult, error) {
	var out authResponse
	body := registerRequest{
		Name:                 reg.Name,
		Email:                reg.Email,
		Password:             reg.Password,
		PasswordConfirmation: reg.PasswordConfirmation,
	}
	if err := g.do(ctx, http.MethodPost, "/auth/register", "", body, &out, domain.ErrRegistrationFailed); err != nil {
		return nil, err
	}
	return out.result(domain.ErrRegistrationFailed)
}

// UpdateProfile sends the changed profile fields and returns the server's
// copy of the user.
func (g *ChurchAPI) UpdateProfile(ctx context.Context, token string, update domain.ProfileUpdate) (*domain.Session, error) {
	var out profileResponse
	body := profileRequest(update)
	if err := g.do(ctx, http.MethodPut, "/auth/profile", token, body, &out, domain.ErrProfileUpdateFailed); err != nil {
		return nil, err
	}
	user := out.user()
	if user == nil {
		return nil, domain.NewFlowError(domain.ErrProfileUpdateFailed,
			"Unexpected response from server.", domain.ErrCorruptedSessionData)
	}
	session := user.session()
	return &session, nil
}

func (g *ChurchAPI) do(ctx context.Context, method, path, token string, in, out any, kind error) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	endpoint := g.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAPIUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAPIUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s %s returned status %d", domain.ErrAPIUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeFailure(resp, kind)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewFlowError(kind, "Unexpected response from server.",
			fmt.Errorf("%w: %w", domain.ErrCorruptedSessionData, err))
	}
	return nil
}

// apiFailure is the error envelope of the church API.
type apiFailure struct {
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

func decodeFailure(resp *http.Response, kind error) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxDeniedBody))

	var f apiFailure
	_ = json.Unmarshal(raw, &f)

	message := f.Message
	if message == "" {
		message = f.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	var cause error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		cause = domain.ErrNotAuthenticated
	case http.StatusForbidden:
		cause = &domain.AuthorizationDeniedError{Message: f.Message, URL: resp.Request.URL.RequestURI()}
	case http.StatusTooManyRequests:
		cause = domain.ErrRateLimited
	}

	return &domain.FlowError{
		Kind:    kind,
		Message: message,
		Fields:  fieldErrors(f.Errors),
		Err:     cause,
	}
}

// fieldErrors keeps the first message per field. Values may be a string or
// a list of strings.
func fieldErrors(errs map[string]json.RawMessage) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	fields := make(map[string]string, len(errs))
	for field, raw := range errs {
		var single string
		if json.Unmarshal(raw, &single) == nil {
			fields[field] = single
			continue
		}
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			fields[field] = list[0]
		}
	}
	return fields
}

type authResponse struct {
	User        *apiUser `json:"user"`
	Token       string   `json:"token"`
	AccessToken string   `json:"access_token"`
}

func (r authResponse) result(kind error) (*domain.AuthResult, error) {
	token := r.Token
	if token == "" {
		token = r.AccessToken
	}
	if r.User == nil || token == "" {
		return nil, domain.NewFlowError(kind, "Unexpected response from server.", domain.ErrCorruptedSessionData)
	}
	return &domain.AuthResult{User: r.User.session(), Token: token}, nil
}

// profileResponse accepts both {"user": {...}} and a bare user object.
type profileResponse struct {
	wrapped *apiUser
	bare    apiUser
}

func (r *profileResponse) UnmarshalJSON(data []byte) error {
	var env struct {
		User *apiUser `json:"user"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.User != nil {
		r.wrapped = env.User
		return nil
	}
	return json.Unmarshal(data, &r.bare)
}

func (r *profileResponse) user() *apiUser {
	if r.wrapped != nil {
		return r.wrapped
	}
	if r.bare.ID == "" {
		return nil
	}
	return &r.bare
}

// apiUser is the user resource as the church API serializes it.
type apiUser struct {
	ID              flexID       `json:"id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Role            namedValue   `json:"role"`
	Roles           []namedValue `json:"roles"`
	Permissions     []namedValue `json:"permissions"`
	EmailVerifiedAt *time.Time   `json:"email_verified_at"`
	CreatedAt       *time.Time   `json:"created_at"`
}

func (u *apiUser) session() domain.Session {
	role := string(u.Role)
	if role == "" && len(u.Roles) > 0 {
		role = string(u.Roles[0])
	}
	names := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		names = append(names, string(p))
	}

	s := domain.Session{
		ID:              string(u.ID),
		Name:            u.Name,
		Email:           u.Email,
		Role:            role,
		Permissions:     domain.NewNameSet(names...),
		EmailVerifiedAt: u.EmailVerifiedAt,
	}
	if u.CreatedAt != nil {
		s.CreatedAt = *u.CreatedAt
	}
	return s
}

// flexID accepts numeric and string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(s)
	return nil
}

// namedValue accepts "name" and {"name": "..."} forms.
type namedValue string

func (v *namedValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = namedValue(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("expected a name or an object with a name")
	}
	*v = namedValue(obj.Name)
	return nil
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"church-admin-gateway/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *ChurchAPI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api, err := NewChurchAPI(server.URL+"/", 5*time.Second, nil)
	require.NoError(t, err)
	return api
}

func TestChurchAPI_LoginSuccess(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "grace@example.org", body["email"])
		assert.Equal(t, "secret", body["password"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"user": {
				"id": 42,
				"name": "Grace Hopper",
				"email": "grace@example.org",
				"role": {"id": 3, "name": "pastor"},
				"permissions": [{"name": "view-members"}, "edit-members"],
				"email_verified_at": "2024-03-01T09:30:00Z",
				"created_at": "2023-12-24T18:00:00Z"
			},
			"token": "17|abcdef"
		}`)
	})

	res, err := api.Login(context.Background(), domain.Credentials{Email: "grace@example.org", Password: "secret"})

	require.NoError(t, err)
	assert.Equal(t, "17|abcdef", res.Token)
	assert.Equal(t, "42", res.User.ID)
	assert.Equal(t, "Grace Hopper", res.User.Name)
	assert.Equal(t, "pastor", res.User.Role)
	assert.Equal(t, []string{"edit-members", "view-members"}, res.User.Permissions.Sorted())
	require.NotNil(t, res.User.EmailVerifiedAt)
	assert.Equal(t, 2024, res.User.EmailVerifiedAt.Year())
	assert.Equal(t, time.Date(2023, 12, 24, 18, 0, 0, 0, time.UTC), res.User.CreatedAt.UTC())
}

func TestChurchAPI_LoginRolesListAndAccessToken(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user":{"id":"u-1","email":"a@example.org","role":null,"roles":["admin"],"permissions":[]},"access_token":"tok"}`)
	})

	res, err := api.Login(context.Background(), domain.Credentials{Email: "a@example.org", Password: "pw"})

	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "u-1", res.User.ID)
	assert.Equal(t, "admin", res.User.Role)
	assert.Empty(t, res.User.Permissions)
}

func TestChurchAPI_LoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"These credentials do not match our records."}`)
	})

	res, err := api.Login(context.Background(), domain.Credentials{Email: "a@example.org", Password: "bad"})

	assert.Nil(t, res)
	var fe *domain.FlowError
	require.True(t, errors.As(err, &fe))
	assert.True(t, errors.Is(err, domain.ErrAuthenticationFailed))
	assert.True(t, errors.Is(err, domain.ErrNotAuthenticated))
	assert.Equal(t, "These credentials do not match our records.", fe.Message)
}

func TestChurchAPI_LoginMissingToken(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user":{"id":1,"email":"a@example.org"}}`)
	})

	_, err := api.Login(context.Background(), domain.Credentials{})

	assert.True(t, errors.Is(err, domain.ErrAuthenticationFailed))
	assert.True(t, errors.Is(err, domain.ErrCorruptedSessionData))
}

func TestChurchAPI_RegisterValidationErrors(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pw12345678", body["password_confirmation"])

		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{
			"message": "The given data was invalid.",
			"errors": {
				"email": ["The email has already been taken."],
				"password": "The password is too weak."
			}
		}`)
	})

	_, err := api.Register(context.Background(), domain.Registration{
		Name:                 "A",
		Email:                "taken@example.org",
		Password:             "pw12345678",
		PasswordConfirmation: "pw12345678",
	})

	var fe *domain.FlowError
	require.True(t, errors.As(err, &fe))
	assert.True(t, errors.Is(err, domain.ErrRegistrationFailed))
	assert.Equal(t, "The given data was invalid.", fe.Message)
	assert.Equal(t, map[string]string{
		"email":    "The email has already been taken.",
		"password": "The password is too weak.",
	}, fe.Fields)
}

func TestChurchAPI_UpdateProfile(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/auth/profile", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Renamed", body["name"])
		assert.NotContains(t, body, "email")

		io.WriteString(w, `{"user":{"id":1,"name":"Renamed","email":"a@example.org","role":"admin","permissions":["view-members"]}}`)
	})

	name := "Renamed"
	user, err := api.UpdateProfile(context.Background(), "tok-1", domain.ProfileUpdate{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", user.Name)
	assert.Equal(t, "1", user.ID)
	assert.Empty(t, user.Token)
}

func TestChurchAPI_UpdateProfileBareUser(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":5,"name":"Bare","email":"bare@example.org","role":"pastor"}`)
	})

	user, err := api.UpdateProfile(context.Background(), "tok", domain.ProfileUpdate{})

	require.NoError(t, err)
	assert.Equal(t, "5", user.ID)
	assert.Equal(t, "Bare", user.Name)
}

func TestChurchAPI_UpdateProfileForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"message":"Profile editing is disabled."}`)
	}))
	t.Cleanup(server.Close)

	interceptor := NewForbiddenInterceptor(nil, slog.Default())
	rec := &recorder{}
	interceptor.Register(rec.handle)
	api, err := NewChurchAPI(server.URL, 5*time.Second, interceptor)
	require.NoError(t, err)

	_, err = api.UpdateProfile(context.Background(), "tok", domain.ProfileUpdate{})

	assert.True(t, errors.Is(err, domain.ErrProfileUpdateFailed))
	assert.True(t, errors.Is(err, domain.ErrAuthorizationDenied))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "Profile editing is disabled.", rec.calls[0].Message)
	assert.Equal(t, "/auth/profile", rec.calls[0].URL)
}

func TestChurchAPI_ServerError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := api.Login(context.Background(), domain.Credentials{})

	assert.True(t, errors.Is(err, domain.ErrAPIUnavailable))
}

func TestChurchAPI_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	api, err := NewChurchAPI(server.URL, time.Second, nil)
	require.NoError(t, err)

	_, err = api.Login(context.Background(), domain.Credentials{})

	assert.True(t, errors.Is(err, domain.ErrAPIUnavailable))
}

func TestNewChurchAPI_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/only"} {
		_, err := NewChurchAPI(raw, time.Second, nil)
		assert.Error(t, err, raw)
	}
}

func TestChurchAPI_BaseURLPathPreserved(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	u := api.BaseURL()
	u.Path = "/mutated"

	assert.NotEqual(t, "/mutated", api.BaseURL().Path)
	assert.NotNil(t, api.Transport())
}

//go:build pact

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"church-admin-gateway/internal/domain"

	"github.com/pact-foundation/pact-go/v2/consumer"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPact(t *testing.T) *consumer.V4HTTPMockProvider {
	t.Helper()
	mockProvider, err := consumer.NewV4Pact(consumer.MockHTTPProviderConfig{
		Consumer: "church-admin-gateway",
		Provider: "church-api",
		PactDir:  filepath.Join("..", "..", "..", "pacts"),
	})
	require.NoError(t, err)
	return mockProvider
}

func pactUser() matchers.Map {
	return matchers.Map{
		"id":          matchers.Like(42),
		"name":        matchers.String("Grace Hopper"),
		"email":       matchers.String("grace@example.org"),
		"role":        matchers.Like(map[string]any{"name": "pastor"}),
		"permissions": matchers.EachLike(map[string]any{"name": "view-members"}, 1),
		"created_at":  matchers.Timestamp(),
	}
}

func TestChurchAPIPact_Login(t *testing.T) {
	mockProvider := newPact(t)

	err := mockProvider.
		AddInteraction().
		Given("a pastor account exists").
		UponReceiving("a login request with valid credentials").
		WithRequest(http.MethodPost, "/auth/login", func(b *consumer.V4RequestBuilder) {
			b.Header("Content-Type", matchers.String("application/json"))
			b.JSONBody(matchers.Map{
				"email":    matchers.String("grace@example.org"),
				"password": matchers.String("secret"),
			})
		}).
		WillRespondWith(http.StatusOK, func(b *consumer.V4ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"user":  pactUser(),
				"token": matchers.String("17|abcdef"),
			})
		}).
		ExecuteTest(t, func(config consumer.MockServerConfig) error {
			api, err := NewChurchAPI(fmt.Sprintf("http://%s:%d", config.Host, config.Port), 5*time.Second, nil)
			if err != nil {
				return err
			}
			res, err := api.Login(context.Background(), domain.Credentials{Email: "grace@example.org", Password: "secret"})
			if err != nil {
				return err
			}
			assert.Equal(t, "42", res.User.ID)
			assert.Equal(t, "pastor", res.User.Role)
			assert.True(t, res.User.Permissions.Has("view-members"))
			return nil
		})

	assert.NoError(t, err)
}

func TestChurchAPIPact_LoginRejected(t *testing.T) {
	mockProvider := newPact(t)

	err := mockProvider.
		AddInteraction().
		Given("a pastor account exists").
		UponReceiving("a login request with a wrong password").
		WithRequest(http.MethodPost, "/auth/login", func(b *consumer.V4RequestBuilder) {
			b.Header("Content-Type", matchers.String("application/json"))
			b.JSONBody(matchers.Map{
				"email":    matchers.String("grace@example.org"),
				"password": matchers.String("wrong"),
			})
		}).
		WillRespondWith(http.StatusUnauthorized, func(b *consumer.V4ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"message": matchers.String("These credentials do not match our records."),
			})
		}).
		ExecuteTest(t, func(config consumer.MockServerConfig) error {
			api, err := NewChurchAPI(fmt.Sprintf("http://%s:%d", config.Host, config.Port), 5*time.Second, nil)
			if err != nil {
				return err
			}
			_, err = api.Login(context.Background(), domain.Credentials{Email: "grace@example.org", Password: "wrong"})
			if !errors.Is(err, domain.ErrAuthenticationFailed) {
				return fmt.Errorf("expected authentication failure, got %v", err)
			}
			return nil
		})

	assert.NoError(t, err)
}

func TestChurchAPIPact_ProfileForbidden(t *testing.T) {
	mockProvider := newPact(t)

	err := mockProvider.
		AddInteraction().
		Given("profile editing is disabled for the user").
		UponReceiving("a profile update from a user without permission").
		WithRequest(http.MethodPut, "/auth/profile", func(b *consumer.V4RequestBuilder) {
			b.Header("Authorization", matchers.Regex("Bearer 17|abcdef", `^Bearer .+$`))
			b.JSONBody(matchers.Map{"name": matchers.String("Renamed")})
		}).
		WillRespondWith(http.StatusForbidden, func(b *consumer.V4ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"message": matchers.String("You do not have permission to edit your profile."),
			})
		}).
		ExecuteTest(t, func(config consumer.MockServerConfig) error {
			interceptor := NewForbiddenInterceptor(nil, slog.Default())
			var denied *domain.AuthorizationDeniedError
			interceptor.Register(func(_ context.Context, d *domain.AuthorizationDeniedError) { denied = d })

			api, err := NewChurchAPI(fmt.Sprintf("http://%s:%d", config.Host, config.Port), 5*time.Second, interceptor)
			if err != nil {
				return err
			}
			name := "Renamed"
			_, err = api.UpdateProfile(context.Background(), "17|abcdef", domain.ProfileUpdate{Name: &name})
			if !errors.Is(err, domain.ErrAuthorizationDenied) {
				return fmt.Errorf("expected authorization denied, got %v", err)
			}
			if denied == nil {
				return errors.New("forbidden handler was not invoked")
			}
			assert.Equal(t, "/auth/profile", denied.URL)
			return nil
		})

	assert.NoError(t, err)
}

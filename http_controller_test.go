package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-auth-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout for app.Test, generous because registration runs bcrypt at
// full cost.
const testTimeout = 60_000

type testServer struct {
	app    *fiber.App
	auther *auth.Auther
	repo   auth.RepositoryManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := newTestDB(t)
	repo := auth.NewRepositoryManager(db)
	provider := auth.NewUserProvider(repo.Users())
	auther := auth.NewAuthenticator(provider, newTestConfig())

	app := fiber.New()
	auth.RegisterAuthRoutes(
		app,
		auth.WithRepositoryManager(repo),
		auth.WithAuthenticator(auther),
		auth.WithAuthConfig(newTestConfig()),
		auth.WithTokenValidator(auther.TokenService()),
	)

	return &testServer{app: app, auther: auther, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := s.app.Test(req, testTimeout)
	require.NoError(t, err)

	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}

	return res, out
}

func (s *testServer) register(t *testing.T, username, password string) (*http.Response, map[string]any) {
	t.Helper()
	return s.do(t, fiber.MethodPost, "/register", fiber.Map{
		"username": username,
		"password": password,
	}, nil)
}

func (s *testServer) login(t *testing.T, username, password string) (*http.Response, map[string]any) {
	t.Helper()
	return s.do(t, fiber.MethodPost, "/login", fiber.Map{
		"username": username,
		"password": password,
	}, nil)
}

func TestHomeRoute(t *testing.T) {
	srv := newTestServer(t)

	res, body := srv.do(t, fiber.MethodGet, "/", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, "welcome to the secure REST API", body["message"])
}

func TestRegistrationRoute(t *testing.T) {
	t.Run("Creates an account", func(t *testing.T) {
		srv := newTestServer(t)

		res, body := srv.register(t, "alice", "secret123")
		assert.Equal(t, fiber.StatusCreated, res.StatusCode)
		assert.Equal(t, "registered", body["msg"])

		user, err := srv.repo.Users().GetByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.NotEqual(t, "secret123", user.PasswordHash)
	})

	t.Run("Duplicate username conflicts", func(t *testing.T) {
		srv := newTestServer(t)

		res, _ := srv.register(t, "alice", "secret123")
		require.Equal(t, fiber.StatusCreated, res.StatusCode)

		res, body := srv.register(t, "alice", "other456")
		assert.Equal(t, fiber.StatusConflict, res.StatusCode)
		assert.Equal(t, "username already taken", body["msg"])
	})

	t.Run("Short username is rejected", func(t *testing.T) {
		srv := newTestServer(t)

		res, body := srv.register(t, "ab", "secret123")
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "validation failed", body["msg"])

		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errs, "username")
		assert.NotContains(t, errs, "password")
	})

	t.Run("Lengths count characters, not bytes", func(t *testing.T) {
		srv := newTestServer(t)

		// two runes, four bytes: still too short
		res, body := srv.register(t, "éé", "secret123")
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errs, "username")

		// eighty runes, one hundred sixty bytes: at the limit
		res, _ = srv.register(t, strings.Repeat("é", 80), "secret123")
		assert.Equal(t, fiber.StatusCreated, res.StatusCode)

		// five runes, ten bytes: password still too short
		res, body = srv.register(t, "alice", "ééééé")
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		errs, ok = body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errs, "password")
	})

	t.Run("Minimum length username passes", func(t *testing.T) {
		srv := newTestServer(t)

		res, _ := srv.register(t, "abc", "secret123")
		assert.Equal(t, fiber.StatusCreated, res.StatusCode)
	})

	t.Run("Short password is rejected", func(t *testing.T) {
		srv := newTestServer(t)

		res, body := srv.register(t, "alice", "12345")
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errs, "password")
	})

	t.Run("Violations are collected, not fail fast", func(t *testing.T) {
		srv := newTestServer(t)

		res, body := srv.register(t, "ab", "123")
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errs, "username")
		assert.Contains(t, errs, "password")
	})

	t.Run("Missing fields are rejected", func(t *testing.T) {
		srv := newTestServer(t)

		res, body := srv.do(t, fiber.MethodPost, "/register", fiber.Map{}, nil)
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		errs, ok := body["errors"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, errs, "username")
		assert.Contains(t, errs, "password")
	})

	t.Run("Invalid body is rejected", func(t *testing.T) {
		srv := newTestServer(t)

		req := httptest.NewRequest(fiber.MethodPost, "/register", bytes.NewReader([]byte("{not json")))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		res, err := srv.app.Test(req, testTimeout)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})
}

func TestLoginRoute(t *testing.T) {
	t.Run("Valid credentials issue a token", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "validuser", "secret123")

		res, body := srv.login(t, "validuser", "secret123")
		assert.Equal(t, fiber.StatusOK, res.StatusCode)

		token, ok := body["access_token"].(string)
		require.True(t, ok)
		require.NotEmpty(t, token)

		claims, err := srv.auther.TokenService().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "validuser", claims.Subject())
	})

	t.Run("Round trip with surrounding whitespace", func(t *testing.T) {
		srv := newTestServer(t)

		res, _ := srv.register(t, "  alice  ", "secret123")
		require.Equal(t, fiber.StatusCreated, res.StatusCode)

		res, body := srv.login(t, "  alice  ", "secret123")
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
		assert.Contains(t, body, "access_token")
	})

	t.Run("Wrong password and unknown user are indistinguishable", func(t *testing.T) {
		srv := newTestServer(t)
		srv.register(t, "alice", "secret123")

		resWrong, bodyWrong := srv.login(t, "alice", "badpassword")
		resMissing, bodyMissing := srv.login(t, "nobody1", "secret123")

		assert.Equal(t, fiber.StatusUnauthorized, resWrong.StatusCode)
		assert.Equal(t, fiber.StatusUnauthorized, resMissing.StatusCode)
		assert.Equal(t, bodyWrong, bodyMissing)
		assert.Equal(t, "invalid username or password", bodyWrong["msg"])
	})

	t.Run("Validation applies before any lookup", func(t *testing.T) {
		srv := newTestServer(t)

		res, body := srv.login(t, "ab", "123")
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "validation failed", body["msg"])
	})
}

func TestProtectedRoute(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "secret123")

	_, loginBody := srv.login(t, "alice", "secret123")
	token, ok := loginBody["access_token"].(string)
	require.True(t, ok)

	bearer := func(token string) map[string]string {
		return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
	}

	t.Run("Valid token", func(t *testing.T) {
		res, body := srv.do(t, fiber.MethodGet, "/protected", nil, bearer(token))
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
		assert.Equal(t, "alice", body["logged_in_as"])
	})

	t.Run("No authorization header", func(t *testing.T) {
		res, body := srv.do(t, fiber.MethodGet, "/protected", nil, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "missing or invalid token", body["msg"])
	})

	t.Run("Wrong auth scheme", func(t *testing.T) {
		res, _ := srv.do(t, fiber.MethodGet, "/protected", nil, map[string]string{
			fiber.HeaderAuthorization: "Basic " + token,
		})
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("Garbage token", func(t *testing.T) {
		res, body := srv.do(t, fiber.MethodGet, "/protected", nil, bearer("not.a.jwt"))
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "missing or invalid token", body["msg"])
	})

	t.Run("Expired token", func(t *testing.T) {
		expired, err := srv.auther.TokenService().SignClaims(&auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		require.NoError(t, err)

		res, body := srv.do(t, fiber.MethodGet, "/protected", nil, bearer(expired))
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "missing or invalid token", body["msg"])
	})

	t.Run("Token signed with a foreign key", func(t *testing.T) {
		foreign := auth.NewTokenService([]byte("some other service"), 1, "test-issuer", nil)
		forged, err := foreign.Generate(staticIdentity{id: "usr-1", username: "alice"})
		require.NoError(t, err)

		res, _ := srv.do(t, fiber.MethodGet, "/protected", nil, bearer(forged))
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})
}

func TestUnknownRouteIsNotProtected(t *testing.T) {
	srv := newTestServer(t)

	res, err := srv.app.Test(httptest.NewRequest(fiber.MethodGet, "/does-not-exist", nil), testTimeout)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}

func TestNewAuthControllerPanicsOnMissingDeps(t *testing.T) {
	assert.Panics(t, func() {
		auth.NewAuthController()
	})
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("Nil error", func(t *testing.T) {
		assert.Empty(t, auth.FormatValidationErrorToMap(nil))
	})

	t.Run("Validation errors map by field", func(t *testing.T) {
		err := validation.Errors{
			"username": fmt.Errorf("the length must be between 3 and 80"),
			"password": fmt.Errorf("the length must be no less than 6"),
		}

		out := auth.FormatValidationErrorToMap(err)
		assert.Len(t, out, 2)
		assert.Contains(t, out["username"], "between 3 and 80")
		assert.Contains(t, out["password"], "no less than 6")
	})

	t.Run("Arbitrary error falls back to payload key", func(t *testing.T) {
		out := auth.FormatValidationErrorToMap(fmt.Errorf("boom"))
		assert.Equal(t, map[string]string{"payload": "boom"}, out)
	})
}

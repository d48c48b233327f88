package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/profile-service/internal/api/http"
	"github.com/spec-kit/profile-service/internal/api/http/handlers"
	"github.com/spec-kit/profile-service/internal/auth"
	"github.com/spec-kit/profile-service/internal/config"
	"github.com/spec-kit/profile-service/internal/observability"
	"github.com/spec-kit/profile-service/internal/repository"
	"github.com/spec-kit/profile-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	repo    *repository.MemoryUserRepository
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Config{
		App: config.AppConfig{Name: "profile-test", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:              "router-test-secret",
			JWTIssuer:              "router-test",
			AccessTokenTTLMinutes:  60,
			RefreshTokenTTLMinutes: 120,
			PasswordAlgorithm:      config.PasswordBcrypt,
			BcryptCost:             bcrypt.MinCost,
			MinPasswordLength:      8,
		},
	}
	logger := zap.NewNop()
	repo := repository.NewMemoryUserRepository()

	authSvc, err := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: repo, Logger: logger})
	require.NoError(t, err)
	userSvc := service.NewUserService(cfg.Auth, service.UserDependencies{UserRepo: repo, Hasher: authSvc.Hasher(), Logger: logger})
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{ErrorHandler: httptransport.ErrorHandler(logger)})
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, metrics),
		Users:          handlers.NewUsersHandler(authSvc, userSvc),
		Auth:           handlers.NewAuthHandler(authSvc),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), repo),
	})
	return &testServer{app: app, repo: repo, metrics: metrics}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type userBody struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Hash     string `json:"password_hash"`
}

type tokenBody struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, []byte, http.Header) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw, resp.Header
}

func decode[T any](t *testing.T, raw []byte) (T, envelope) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var out T
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &out))
	}
	return out, env
}

func (s *testServer) registerAndLogin(t *testing.T, email, name string) (userBody, tokenBody) {
	t.Helper()

	status, raw, _ := s.do(t, http.MethodPost, "/users", fiber.Map{"email": email, "name": name, "password": "password1"}, "")
	require.Equal(t, http.StatusCreated, status, string(raw))
	user, _ := decode[userBody](t, raw)

	status, raw, _ = s.do(t, http.MethodPost, "/auth/login", fiber.Map{"email": email, "password": "password1"}, "")
	require.Equal(t, http.StatusOK, status, string(raw))
	tokens, _ := decode[tokenBody](t, raw)
	return user, tokens
}

func TestRegisterLoginAndReadProfile(t *testing.T) {
	s := newTestServer(t)

	user, tokens := s.registerAndLogin(t, "Alice@Example.com", "Alice")
	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice@example.com", user.Email)
	require.Empty(t, user.Password)
	require.Empty(t, user.Hash)
	require.Equal(t, "bearer", tokens.TokenType)
	require.NotEmpty(t, tokens.RefreshToken)

	status, raw, _ := s.do(t, http.MethodGet, "/users/me", nil, tokens.AccessToken)
	require.Equal(t, http.StatusOK, status)
	me, _ := decode[userBody](t, raw)
	require.Equal(t, user.ID, me.ID)

	status, raw, _ = s.do(t, http.MethodGet, "/users/"+user.ID, nil, tokens.AccessToken)
	require.Equal(t, http.StatusOK, status)
	got, _ := decode[userBody](t, raw)
	require.Equal(t, user, got)

	status, raw, _ = s.do(t, http.MethodGet, "/users/does-not-exist", nil, tokens.AccessToken)
	require.Equal(t, http.StatusNotFound, status)
	_, env := decode[userBody](t, raw)
	require.Equal(t, "USER_NOT_FOUND", env.Error.Code)
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "taken@example.com", "Taken")

	cases := []struct {
		name string
		body fiber.Map
		code string
	}{
		{"duplicate email", fiber.Map{"email": "TAKEN@example.com", "name": "X", "password": "password1"}, "DUPLICATE_EMAIL"},
		{"weak password", fiber.Map{"email": "new@example.com", "name": "X", "password": "short"}, "WEAK_PASSWORD"},
		{"missing name", fiber.Map{"email": "new@example.com", "password": "password1"}, "INPUT_ERROR"},
		{"bad email", fiber.Map{"email": "nope", "name": "X", "password": "password1"}, "INPUT_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, raw, _ := s.do(t, http.MethodPost, "/users", tc.body, "")
			require.Equal(t, http.StatusBadRequest, status)
			_, env := decode[userBody](t, raw)
			require.Equal(t, tc.code, env.Error.Code)
		})
	}
	require.Equal(t, 1, s.repo.Count())
}

func TestLoginFailureResponsesMatch(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "bob@example.com", "Bob")

	wrongStatus, wrongBody, _ := s.do(t, http.MethodPost, "/auth/login", fiber.Map{"email": "bob@example.com", "password": "password2"}, "")
	unknownStatus, unknownBody, _ := s.do(t, http.MethodPost, "/auth/login", fiber.Map{"email": "ghost@example.com", "password": "password1"}, "")

	require.Equal(t, http.StatusUnauthorized, wrongStatus)
	require.Equal(t, wrongStatus, unknownStatus)
	require.JSONEq(t, string(wrongBody), string(unknownBody))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	user, tokens := s.registerAndLogin(t, "carol@example.com", "Carol")

	status, _, header := s.do(t, http.MethodGet, "/users/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Bearer", header.Get("WWW-Authenticate"))

	status, _, _ = s.do(t, http.MethodGet, "/users/"+user.ID, nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, status)

	status, _, _ = s.do(t, http.MethodGet, "/users/me", nil, tokens.RefreshToken)
	require.Equal(t, http.StatusForbidden, status)
}

func TestUpdateProfileOwnership(t *testing.T) {
	s := newTestServer(t)
	alice, aliceTokens := s.registerAndLogin(t, "alice@example.com", "Alice")
	bob, _ := s.registerAndLogin(t, "bob@example.com", "Bob")

	status, raw, _ := s.do(t, http.MethodPut, "/users/"+bob.ID, fiber.Map{"name": "Hijacked"}, aliceTokens.AccessToken)
	require.Equal(t, http.StatusForbidden, status)
	_, env := decode[userBody](t, raw)
	require.Equal(t, "FORBIDDEN", env.Error.Code)

	stored, err := s.repo.GetByID(context.Background(), bob.ID)
	require.NoError(t, err)
	require.Equal(t, "Bob", stored.Name)

	status, raw, _ = s.do(t, http.MethodPut, "/users/"+alice.ID, fiber.Map{"name": "Alice Updated"}, aliceTokens.AccessToken)
	require.Equal(t, http.StatusOK, status)
	updated, _ := decode[userBody](t, raw)
	require.Equal(t, "Alice Updated", updated.Name)
	require.Equal(t, alice.Email, updated.Email)

	status, _, _ = s.do(t, http.MethodPut, "/users/missing", fiber.Map{"name": "X"}, aliceTokens.AccessToken)
	require.Equal(t, http.StatusNotFound, status)
}

func TestUpdateWeakPasswordKeepsHash(t *testing.T) {
	s := newTestServer(t)
	user, tokens := s.registerAndLogin(t, "dave@example.com", "Dave")

	before, err := s.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)

	status, raw, _ := s.do(t, http.MethodPut, "/users/"+user.ID, fiber.Map{"password": "short"}, tokens.AccessToken)
	require.Equal(t, http.StatusBadRequest, status)
	_, env := decode[userBody](t, raw)
	require.Equal(t, "WEAK_PASSWORD", env.Error.Code)

	after, err := s.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, before.PasswordHash, after.PasswordHash)

	status, _, _ = s.do(t, http.MethodPost, "/auth/login", fiber.Map{"email": "dave@example.com", "password": "password1"}, "")
	require.Equal(t, http.StatusOK, status)
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, tokens := s.registerAndLogin(t, "erin@example.com", "Erin")

	status, raw, _ := s.do(t, http.MethodPost, "/auth/refresh", fiber.Map{"refresh_token": tokens.RefreshToken}, "")
	require.Equal(t, http.StatusOK, status)
	next, _ := decode[tokenBody](t, raw)

	status, _, _ = s.do(t, http.MethodGet, "/users/me", nil, next.AccessToken)
	require.Equal(t, http.StatusOK, status)

	status, _, _ = s.do(t, http.MethodPost, "/auth/refresh", fiber.Map{"refresh_token": tokens.AccessToken}, "")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	status, raw, _ := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"UP","service":"profile-test"}`, string(raw))

	status, raw, _ = s.do(t, http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, status)
	_, env := decode[userBody](t, raw)
	require.Equal(t, "NOT_FOUND", env.Error.Code)

	status, raw, _ = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, status)
	var snap observability.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, int64(1), snap.Requests["/health|GET|200"])
}

func TestMalformedPayload(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/api/dto"
	"github.com/spec-kit/presence-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/observability"
	"github.com/spec-kit/presence-service/internal/repository"
	"github.com/spec-kit/presence-service/internal/service"
)

type testServer struct {
	app   *fiber.App
	users *repository.MemoryUserRepository
	svc   *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			TokenTTLMinutes: 60,
			BcryptCost:      4,
		},
	}

	users := repository.NewMemoryUserRepository()
	svc := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo: users,
		Logger:   zap.NewNop(),
	})
	guard := auth.NewSessionGuard(svc.TokenManager(), users, zap.NewNop())

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics())
	RegisterRoutes(app, RouteConfig{
		Auth:         handlers.NewAuthHandler(svc),
		SessionGuard: guard,
	})

	return &testServer{app: app, users: users, svc: svc}
}

func (s *testServer) request(t *testing.T, method, path, token string, payload any) (*http.Response, dto.Envelope) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	var env dto.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestSignupEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.request(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: "Ann", Email: "a@x.com", Password: "pw123456", Bio: "hi",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)
	require.NotEmpty(t, env.Token)
	require.NotNil(t, env.UserData)
	require.Equal(t, "a@x.com", env.UserData.Email)
}

func TestSignupDuplicateEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := dto.SignupRequest{FullName: "Ann", Email: "a@x.com", Password: "pw123456", Bio: "hi"}
	resp, _ := s.request(t, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := s.request(t, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.False(t, env.Success)
	require.Equal(t, "Account already exists", env.Message)
}

func TestSignupMissingFieldEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.request(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: "Ann", Email: "a@x.com", Password: "pw123456",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, env.Success)
}

func TestLoginWrongPasswordEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.request(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: "Ann", Email: "a@x.com", Password: "pw123456", Bio: "hi",
	})

	resp, env := s.request(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{
		Email: "a@x.com", Password: "wrong-pass",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, env.Success)
	require.Equal(t, "Invalid credentials", env.Message)
	require.Empty(t, env.Token)
}

func TestCheckWithExpiredToken(t *testing.T) {
	s := newTestServer(t)

	_, env := s.request(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: "Ann", Email: "a@x.com", Password: "pw123456", Bio: "hi",
	})

	expired := auth.NewTokenManager("test-secret", -time.Minute)
	token, _, err := expired.Generate(env.UserData.ID)
	require.NoError(t, err)

	resp, checkEnv := s.request(t, http.MethodGet, "/api/auth/check", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, checkEnv.Success)
	require.Equal(t, "Invalid or expired token", checkEnv.Message)
}

func TestCheckRoundTrip(t *testing.T) {
	s := newTestServer(t)

	_, signupEnv := s.request(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: "Ann", Email: "a@x.com", Password: "pw123456", Bio: "hi",
	})

	resp, env := s.request(t, http.MethodGet, "/api/auth/check", signupEnv.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	require.NotNil(t, env.User)
	require.Equal(t, signupEnv.UserData.ID, env.User.ID)
}

func TestUpdateProfileEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, signupEnv := s.request(t, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: "Ann", Email: "a@x.com", Password: "pw123456", Bio: "hi",
	})

	resp, env := s.request(t, http.MethodPut, "/api/auth/update-profile", signupEnv.Token, dto.UpdateProfileRequest{
		FullName: "Ann B", Bio: "updated",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)
	require.Equal(t, "Ann B", env.User.FullName)
	require.Equal(t, "updated", env.User.Bio)
}

func TestUpdateProfileRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.request(t, http.MethodPut, "/api/auth/update-profile", "", dto.UpdateProfileRequest{
		Bio: "updated",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, env.Success)
	require.Equal(t, "No token provided", env.Message)
}

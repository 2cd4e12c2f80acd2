package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/repository"
	apperrors "github.com/spec-kit/presence-service/pkg/util"
)

func guardApp(t *testing.T) (*fiber.App, *TokenManager, *repository.MemoryUserRepository) {
	t.Helper()

	tm := NewTokenManager("test-secret", time.Hour)
	users := repository.NewMemoryUserRepository()
	guard := NewSessionGuard(tm, users, zap.NewNop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) (err error) {
		// Minimal error boundary mirroring the production middleware.
		if err = c.Next(); err != nil {
			de := apperrors.ToDomainError(err)
			c.Status(de.HTTPStatus)
			return c.JSON(fiber.Map{"success": false, "message": de.Message})
		}
		return nil
	})
	app.Get("/protected", guard.Handle, func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"success": true, "user": user.Public()})
	})

	return app, tm, users
}

func createUser(t *testing.T, users *repository.MemoryUserRepository) *domain.User {
	t.Helper()
	user := &domain.User{FullName: "Ann", Email: "a@x.com", PasswordHash: "x", Bio: "hi"}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func TestGuardMissingToken(t *testing.T) {
	app, _, _ := guardApp(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGuardMalformedHeader(t *testing.T) {
	app, _, _ := guardApp(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGuardExpiredToken(t *testing.T) {
	app, _, users := guardApp(t)
	user := createUser(t, users)

	expired := NewTokenManager("test-secret", -time.Minute)
	token, _, err := expired.Generate(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.False(t, body.Success)
	require.Equal(t, "Invalid or expired token", body.Message)
}

func TestGuardDeletedUser(t *testing.T) {
	app, tm, users := guardApp(t)
	user := createUser(t, users)

	token, _, err := tm.Generate(user.ID)
	require.NoError(t, err)

	users.Delete(context.Background(), user.ID)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGuardValidToken(t *testing.T) {
	app, tm, users := guardApp(t)
	user := createUser(t, users)

	token, _, err := tm.Generate(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuardQueryToken(t *testing.T) {
	app, tm, users := guardApp(t)
	user := createUser(t, users)

	token, _, err := tm.Generate(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/repository"
	apperrors "github.com/spec-kit/presence-service/pkg/util"
)

// UserContextKey is where the guard stores the authenticated user in ctx locals.
const UserContextKey = "auth_user"

// SessionGuard validates bearer tokens and loads the authenticated user.
type SessionGuard struct {
	tokens *TokenManager
	users  repository.UserRepository
	logger *zap.Logger
}

// NewSessionGuard constructs the guard middleware.
func NewSessionGuard(tokens *TokenManager, users repository.UserRepository, logger *zap.Logger) *SessionGuard {
	return &SessionGuard{tokens: tokens, users: users, logger: logger}
}

// Handle enforces authentication for protected routes. The token is taken
// from the Authorization header, or from the "token" query parameter for the
// websocket handshake, which cannot set headers from browser clients.
func (g *SessionGuard) Handle(c *fiber.Ctx) error {
	tokenStr, err := extractToken(c)
	if err != nil {
		return err
	}

	userID, err := g.tokens.Parse(tokenStr)
	if err != nil {
		g.logger.Debug("token rejected", zap.Error(err))
		return apperrors.NewInvalidToken(err)
	}

	user, err := g.users.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, repository.ErrNotFound) {
			// A still-valid token for a deleted account.
			return apperrors.NewUserGone()
		}
		return apperrors.MapError(err)
	}

	c.Locals(UserContextKey, user)
	return c.Next()
}

// CurrentUser retrieves the authenticated user set by Handle.
func CurrentUser(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(UserContextKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}

func extractToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", apperrors.NewNoToken()
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", apperrors.NewNoToken()
}

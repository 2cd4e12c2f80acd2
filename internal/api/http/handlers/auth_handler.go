package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-service/internal/api/dto"
	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/service"
	apperrors "github.com/spec-kit/presence-service/pkg/util"
)

// AuthHandler exposes the signup/login/check/update-profile endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewMissingField("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewMissingField(err.Error())
	}

	user, token, _, err := h.auth.Signup(c.Context(), req.FullName, req.Email, req.Password, req.Bio)
	if err != nil {
		return err
	}

	pub := user.Public()
	return c.Status(http.StatusCreated).JSON(dto.Envelope{
		Success:  true,
		UserData: &pub,
		Token:    token,
		Message:  "Account created successfully",
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewMissingField("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewMissingField(err.Error())
	}

	user, token, _, err := h.auth.Login(c.Context(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}

	pub := user.Public()
	return c.JSON(dto.Envelope{
		Success:  true,
		UserData: &pub,
		Token:    token,
		Message:  "Login successful",
	})
}

// Check handles GET /api/auth/check. It runs behind the session guard, so
// reaching here means the token resolved to a live user.
func (h *AuthHandler) Check(c *fiber.Ctx) error {
	user := mustCurrentUser(c)
	pub := user.Public()
	return c.JSON(dto.Envelope{Success: true, User: &pub})
}

// UpdateProfile handles PUT /api/auth/update-profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewMissingField("invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewMissingField(err.Error())
	}

	user := mustCurrentUser(c)
	updated, err := h.auth.UpdateProfile(c.Context(), user.ID, req.FullName, req.Bio, req.ProfilePic)
	if err != nil {
		return err
	}

	pub := updated.Public()
	return c.JSON(dto.Envelope{Success: true, User: &pub})
}

func mustCurrentUser(c *fiber.Ctx) *domain.User {
	user, ok := auth.CurrentUser(c)
	if !ok {
		// The guard always runs first on these routes.
		panic("handler reached without authenticated user")
	}
	return user
}

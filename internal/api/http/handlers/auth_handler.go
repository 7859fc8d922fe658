package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthHandler serves login and the current-user lookup.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	user, token, err := h.auth.Login(c.UserContext(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.LoginResponse{
		User:      dto.NewUserResponse(user.View()),
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
}

// CurrentUser GET /api/users/current.
func (h *AuthHandler) CurrentUser(c *fiber.Ctx) error {
	username, err := requester(c)
	if err != nil {
		return err
	}
	user, err := h.auth.CurrentUser(c.UserContext(), username)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user.View()))
}

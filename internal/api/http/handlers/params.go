package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/auth"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func requester(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	return principal.User.Username, nil
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+field, map[string]any{field: "must be a positive integer"})
	}
	return id, nil
}

// parseSearchID accepts any integer; ids that cannot exist simply match nothing.
func parseSearchID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid "+field, map[string]any{field: "must be an integer"})
	}
	return id, nil
}

func data(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"data": payload})
}

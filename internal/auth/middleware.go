package auth

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// Username returns the caller's username.
func (p *Principal) Username() string {
	if p == nil || p.User == nil {
		return ""
	}
	return p.User.Username
}

// Authenticator verifies credentials and resolves bearer tokens to users.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware accepts Basic credentials or bearer tokens.
type AuthMiddleware struct {
	authenticator Authenticator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	scheme, value, found := strings.Cut(authHeader, " ")
	if !found || value == "" {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	var (
		user *domain.User
		err  error
	)
	switch {
	case strings.EqualFold(scheme, "Basic"):
		username, password, ok := parseBasic(value)
		if !ok {
			return apperrors.NewUnauthorized("invalid basic credentials")
		}
		user, err = m.authenticator.Authenticate(c.UserContext(), username, password)
	case strings.EqualFold(scheme, "Bearer"):
		user, err = m.authenticator.ResolveToken(c.UserContext(), strings.TrimSpace(value))
	default:
		return apperrors.NewUnauthorized("unsupported authorization scheme")
	}
	if err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

func parseBasic(encoded string) (string, string, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok || username == "" {
		return "", "", false
	}
	return username, password, true
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

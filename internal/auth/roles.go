package auth

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// Operation names a gated entry point.
type Operation string

const (
	OpCreateTicket  Operation = "CreateTicket"
	OpUpdateStatus  Operation = "UpdateStatus"
	OpDeleteTicket  Operation = "DeleteTicket"
	OpViewAuditLog  Operation = "ViewAuditLog"
	OpListTickets   Operation = "ListTickets"
	OpSearchTickets Operation = "SearchTickets"
	OpGetTicket     Operation = "GetTicket"
	OpAddComment    Operation = "AddComment"
	OpListComments  Operation = "ListComments"
	OpCurrentUser   Operation = "CurrentUser"
)

// policy maps each operation to the lowest role allowed to call it.
var policy = map[Operation]domain.Role{
	OpCreateTicket:  domain.RoleEmployee,
	OpUpdateStatus:  domain.RoleITSupport,
	OpDeleteTicket:  domain.RoleITSupport,
	OpViewAuditLog:  domain.RoleITSupport,
	OpListTickets:   domain.RoleEmployee,
	OpSearchTickets: domain.RoleEmployee,
	OpGetTicket:     domain.RoleEmployee,
	OpAddComment:    domain.RoleEmployee,
	OpListComments:  domain.RoleEmployee,
	OpCurrentUser:   domain.RoleEmployee,
}

// Authorize returns a FORBIDDEN error unless role may perform op.
// Unknown operations are denied.
func Authorize(op Operation, role domain.Role) error {
	min, ok := policy[op]
	if !ok {
		return apperrors.NewForbidden(fmt.Sprintf("operation %s is not permitted", op))
	}
	if !role.AtLeast(min) {
		return apperrors.NewForbidden(fmt.Sprintf("role %s may not perform %s", role, op))
	}
	return nil
}

// Require gates a route on op. It must run after the authentication middleware.
func Require(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if err := Authorize(op, principal.User.Role); err != nil {
			return err
		}
		return c.Next()
	}
}

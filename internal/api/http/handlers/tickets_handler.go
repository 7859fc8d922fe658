package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	username, err := requester(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	view, err := h.service.CreateTicket(c.UserContext(), username, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewTicketResponse(*view))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	username, err := requester(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListTicketsForCaller(c.UserContext(), username)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponses(views))
}

// SearchTickets GET /api/tickets/search?ticketId=&status=.
func (h *TicketsHandler) SearchTickets(c *fiber.Ctx) error {
	var search service.TicketSearch
	if raw := c.Query("ticketId"); raw != "" {
		id, err := parseSearchID(raw, "ticketId")
		if err != nil {
			return err
		}
		search.TicketID = &id
	}
	if raw := c.Query("status"); raw != "" && search.TicketID == nil {
		status, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": raw})
		}
		search.Status = &status
	}

	views, err := h.service.SearchTickets(c.UserContext(), search)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponses(views))
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	view, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(*view))
}

// UpdateStatus PUT /api/tickets/:id/status?status=.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	username, err := requester(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	status, ok := domain.ParseTicketStatus(c.Query("status"))
	if !ok {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": c.Query("status")})
	}

	view, err := h.service.UpdateStatus(c.UserContext(), username, id, status)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTicketResponse(*view))
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	username, err := requester(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), username, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AuditLog GET /api/tickets/:id/audit.
func (h *TicketsHandler) AuditLog(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	entries, err := h.service.ListAuditLog(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewAuditLogResponses(entries))
}

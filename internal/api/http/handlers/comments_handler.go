package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// CommentsHandler manages comment endpoints.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// AddComment POST /api/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	username, err := requester(c)
	if err != nil {
		return err
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID <= 0 {
		return apperrors.NewValidationError("invalid ticketId", map[string]any{"ticketId": "must be a positive integer"})
	}

	view, err := h.service.AddComment(c.UserContext(), username, req.TicketID, req.Content)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewCommentResponse(*view))
}

// ListForTicket GET /api/comments/ticket/:id.
func (h *CommentsHandler) ListForTicket(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "id")
	if err != nil {
		return err
	}
	views, err := h.service.ListCommentsForTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewCommentResponses(views))
}

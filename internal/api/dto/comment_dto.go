package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AddCommentRequest payload.
type AddCommentRequest struct {
	TicketID int64  `json:"ticketId"`
	Content  string `json:"content"`
}

// CommentResponse is the comment view.
type CommentResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticketId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCommentResponse maps a domain view.
func NewCommentResponse(v domain.CommentView) CommentResponse {
	return CommentResponse{
		ID:        v.ID,
		TicketID:  v.TicketID,
		Username:  v.Username,
		Content:   v.Content,
		CreatedAt: v.CreatedAt,
	}
}

// NewCommentResponses maps a list, never returning nil.
func NewCommentResponses(views []domain.CommentView) []CommentResponse {
	out := make([]CommentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewCommentResponse(v))
	}
	return out
}

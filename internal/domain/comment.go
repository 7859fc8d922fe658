package domain

import "time"

// Comment is a free-text note attached to a ticket. Comments are append-only.
type Comment struct {
	ID        int64
	TicketID  int64
	UserID    int64
	Content   string
	CreatedAt time.Time
}

// CommentView is the client-facing projection of a comment.
type CommentView struct {
	ID        int64
	TicketID  int64
	Username  string
	Content   string
	CreatedAt time.Time
}

// View projects the comment using the author's resolved username.
func (c *Comment) View(author string) CommentView {
	return CommentView{
		ID:        c.ID,
		TicketID:  c.TicketID,
		Username:  author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

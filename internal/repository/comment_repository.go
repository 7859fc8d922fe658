package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CommentRepository manages ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	// ListByTicket returns comments newest first.
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

type commentRepository struct {
	db Querier
}

// NewCommentRepository builds repository.
func NewCommentRepository(db Querier) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, user_id, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, user_id, content, created_at
        FROM comments WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.UserID,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *commentRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM comments WHERE ticket_id=$1`, ticketID)
	return err
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListByCreator(ctx context.Context, userID int64) ([]domain.Ticket, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	// Delete removes only the ticket row; dependants must be removed first.
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	db Querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db Querier) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, title, description, priority, category, status, created_by_id, created_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, priority, category, status, created_by_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Category,
		ticket.Status,
		ticket.CreatedByID,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1 WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY id`
	return r.list(ctx, query)
}

func (r *ticketRepository) ListByCreator(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE created_by_id=$1 ORDER BY id`
	return r.list(ctx, query, userID)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY id`
	return r.list(ctx, query, status)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Status,
		&ticket.CreatedByID,
		&ticket.CreatedAt,
	)
}

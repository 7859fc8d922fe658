package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AuditLogRepository stores audit entries.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	// ListByTicket returns entries newest first, in commit order.
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditLog, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

type auditLogRepository struct {
	db Querier
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(db Querier) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	const query = `
        INSERT INTO audit_logs (ticket_id, user_id, action, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, logged_at`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *auditLogRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditLog, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, old_value, new_value, logged_at
        FROM audit_logs WHERE ticket_id=$1 ORDER BY id DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.AuditLog{}
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&entry.OldValue,
			&entry.NewValue,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *auditLogRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM audit_logs WHERE ticket_id=$1`, ticketID)
	return err
}

package domain

import "time"

// AuditAction tags what happened to a ticket.
type AuditAction string

const (
	AuditActionTicketCreated AuditAction = "TICKET_CREATED"
	AuditActionStatusChanged AuditAction = "STATUS_CHANGED"
)

// AuditValueNone is recorded as the old value of a creation entry.
const AuditValueNone = "NONE"

// AuditLog is an immutable trail entry, one per mutating event on a ticket.
type AuditLog struct {
	ID        int64
	TicketID  int64
	UserID    int64
	Action    AuditAction
	OldValue  string
	NewValue  string
	Timestamp time.Time
}

// AuditLogView is the client-facing projection of an audit entry.
type AuditLogView struct {
	ID        int64
	TicketID  int64
	Username  string
	Action    AuditAction
	OldValue  string
	NewValue  string
	Timestamp time.Time
}

// View projects the entry using the actor's resolved username.
func (a *AuditLog) View(actor string) AuditLogView {
	return AuditLogView{
		ID:        a.ID,
		TicketID:  a.TicketID,
		Username:  actor,
		Action:    a.Action,
		OldValue:  a.OldValue,
		NewValue:  a.NewValue,
		Timestamp: a.Timestamp,
	}
}

package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

// TicketResponse is the ticket view returned by every ticket endpoint.
type TicketResponse struct {
	ID                int64                 `json:"id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Priority          domain.TicketPriority `json:"priority"`
	Category          domain.TicketCategory `json:"category"`
	Status            domain.TicketStatus   `json:"status"`
	CreatedAt         time.Time             `json:"createdAt"`
	CreatedByUsername string                `json:"createdByUsername"`
}

// AuditLogResponse is one audit trail entry.
type AuditLogResponse struct {
	ID        int64              `json:"id"`
	TicketID  int64              `json:"ticketId"`
	Username  string             `json:"username"`
	Action    domain.AuditAction `json:"action"`
	OldValue  string             `json:"oldValue"`
	NewValue  string             `json:"newValue"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewTicketResponse maps a domain view.
func NewTicketResponse(v domain.TicketView) TicketResponse {
	return TicketResponse{
		ID:                v.ID,
		Title:             v.Title,
		Description:       v.Description,
		Priority:          v.Priority,
		Category:          v.Category,
		Status:            v.Status,
		CreatedAt:         v.CreatedAt,
		CreatedByUsername: v.CreatedByUsername,
	}
}

// NewTicketResponses maps a list, never returning nil.
func NewTicketResponses(views []domain.TicketView) []TicketResponse {
	out := make([]TicketResponse, 0, len(views))
	for _, v := range views {
		out = append(out, NewTicketResponse(v))
	}
	return out
}

// NewAuditLogResponses maps audit views.
func NewAuditLogResponses(views []domain.AuditLogView) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(views))
	for _, v := range views {
		out = append(out, AuditLogResponse{
			ID:        v.ID,
			TicketID:  v.TicketID,
			Username:  v.Username,
			Action:    v.Action,
			OldValue:  v.OldValue,
			NewValue:  v.NewValue,
			Timestamp: v.Timestamp,
		})
	}
	return out
}

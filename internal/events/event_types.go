package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventCommentAdded        EventType = "comment_added"
)

// AllEventTypes lists every type services emit.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketDeleted,
	EventCommentAdded,
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps a fresh id and the current time.
func NewEvent(eventType EventType, ticketID int64, actor string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Category domain.TicketCategory `json:"category"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   int64  `json:"comment_id"`
	BodyPreview string `json:"body_preview"`
}

package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// TicketCategory groups tickets by the kind of problem reported.
type TicketCategory string

const (
	TicketCategoryNetwork  TicketCategory = "NETWORK"
	TicketCategoryHardware TicketCategory = "HARDWARE"
	TicketCategorySoftware TicketCategory = "SOFTWARE"
	TicketCategoryOther    TicketCategory = "OTHER"
)

// Field limits mirror the storage column sizes.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
)

var (
	ticketStatuses   = enumSet(TicketStatusNew, TicketStatusInProgress, TicketStatusResolved)
	ticketPriorities = enumSet(TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh)
	ticketCategories = enumSet(TicketCategoryNetwork, TicketCategoryHardware, TicketCategorySoftware, TicketCategoryOther)
)

// ParseTicketStatus converts user input into a TicketStatus. The returned
// value is always one of the package constants, never a view of raw.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	return lookupEnum(ticketStatuses, raw)
}

// ParseTicketPriority converts user input into a TicketPriority.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	return lookupEnum(ticketPriorities, raw)
}

// ParseTicketCategory converts user input into a TicketCategory.
func ParseTicketCategory(raw string) (TicketCategory, bool) {
	return lookupEnum(ticketCategories, raw)
}

func enumSet[T ~string](values ...T) map[string]T {
	set := make(map[string]T, len(values))
	for _, v := range values {
		set[string(v)] = v
	}
	return set
}

func lookupEnum[T ~string](set map[string]T, raw string) (T, bool) {
	v, ok := set[strings.ToUpper(strings.TrimSpace(raw))]
	return v, ok
}

// Ticket is the aggregate for support requests. Comments and audit logs
// belong to it and are removed with it.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	Priority    TicketPriority
	Category    TicketCategory
	Status      TicketStatus
	CreatedByID int64
	CreatedAt   time.Time
}

// TicketView is the read-only projection returned to callers.
type TicketView struct {
	ID                int64
	Title             string
	Description       string
	Priority          TicketPriority
	Category          TicketCategory
	Status            TicketStatus
	CreatedAt         time.Time
	CreatedByUsername string
}

// View projects the ticket using the creator's resolved username.
func (t *Ticket) View(createdBy string) TicketView {
	return TicketView{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Priority:          t.Priority,
		Category:          t.Category,
		Status:            t.Status,
		CreatedAt:         t.CreatedAt,
		CreatedByUsername: createdBy,
	}
}

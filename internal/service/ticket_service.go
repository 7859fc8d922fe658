package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows. Callers are expected to have
// passed the role gate before reaching it.
type TicketService struct {
	store      repository.UnitOfWork
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.UnitOfWork
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload. Priority and category
// are raw client values and are validated here.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
	Category    string
}

// TicketSearch selects tickets by id, else by status, else everything.
type TicketSearch struct {
	TicketID *int64
	Status   *domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket creates a NEW ticket owned by requester together with its
// TICKET_CREATED audit entry.
func (s *TicketService) CreateTicket(ctx context.Context, requester string, input TicketCreateInput) (*domain.TicketView, error) {
	ticket, err := validateCreateInput(input)
	if err != nil {
		return nil, err
	}

	var view domain.TicketView
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		user, err := lookupUser(ctx, repos.Users, requester)
		if err != nil {
			return err
		}
		ticket.CreatedByID = user.ID
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		entry := &domain.AuditLog{
			TicketID: ticket.ID,
			UserID:   user.ID,
			Action:   domain.AuditActionTicketCreated,
			OldValue: domain.AuditValueNone,
			NewValue: string(ticket.Status),
		}
		if err := repos.AuditLogs.Create(ctx, entry); err != nil {
			return err
		}
		view = ticket.View(user.Username)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, requester, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Priority: ticket.Priority,
		Category: ticket.Category,
	}))
	return &view, nil
}

// UpdateStatus moves a ticket to status and appends a STATUS_CHANGED entry,
// even when the status is unchanged. Any status may follow any other.
func (s *TicketService) UpdateStatus(ctx context.Context, requester string, ticketID int64, status domain.TicketStatus) (*domain.TicketView, error) {
	status, ok := domain.ParseTicketStatus(string(status))
	if !ok {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": "must be NEW, IN_PROGRESS or RESOLVED"})
	}

	var (
		view      domain.TicketView
		oldStatus domain.TicketStatus
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		user, err := lookupUser(ctx, repos.Users, requester)
		if err != nil {
			return err
		}
		ticket, err := repos.Tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return ticketLookupError(err, ticketID)
		}
		oldStatus = ticket.Status
		if err := repos.Tickets.UpdateStatus(ctx, ticket.ID, status); err != nil {
			return ticketLookupError(err, ticketID)
		}
		ticket.Status = status

		entry := &domain.AuditLog{
			TicketID: ticket.ID,
			UserID:   user.ID,
			Action:   domain.AuditActionStatusChanged,
			OldValue: string(oldStatus),
			NewValue: string(status),
		}
		if err := repos.AuditLogs.Create(ctx, entry); err != nil {
			return err
		}

		names := newUsernameResolver(repos.Users)
		creator, err := names.name(ctx, ticket.CreatedByID)
		if err != nil {
			return err
		}
		view = ticket.View(creator)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, ticketID, requester, events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: status,
	}))
	return &view, nil
}

// ListTicketsForCaller returns every ticket to IT support and only the
// caller's own tickets to everyone else.
func (s *TicketService) ListTicketsForCaller(ctx context.Context, requester string) ([]domain.TicketView, error) {
	repos := s.store.Repositories()
	user, err := lookupUser(ctx, repos.Users, requester)
	if err != nil {
		return nil, err
	}

	var tickets []domain.Ticket
	if user.Role == domain.RoleITSupport {
		tickets, err = repos.Tickets.ListAll(ctx)
	} else {
		tickets, err = repos.Tickets.ListByCreator(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}
	return s.project(ctx, repos, tickets)
}

// SearchTickets applies a strict precedence: ticket id, then status, then all.
func (s *TicketService) SearchTickets(ctx context.Context, search TicketSearch) ([]domain.TicketView, error) {
	repos := s.store.Repositories()

	var (
		tickets []domain.Ticket
		err     error
	)
	switch {
	case search.TicketID != nil:
		ticket, getErr := repos.Tickets.GetByID(ctx, *search.TicketID)
		switch {
		case errors.Is(getErr, repository.ErrNotFound):
			tickets = []domain.Ticket{}
		case getErr != nil:
			return nil, getErr
		default:
			tickets = []domain.Ticket{*ticket}
		}
	case search.Status != nil:
		tickets, err = repos.Tickets.ListByStatus(ctx, *search.Status)
	default:
		tickets, err = repos.Tickets.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s.project(ctx, repos, tickets)
}

// GetTicket returns a single ticket view.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.TicketView, error) {
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketLookupError(err, ticketID)
	}
	creator, err := newUsernameResolver(repos.Users).name(ctx, ticket.CreatedByID)
	if err != nil {
		return nil, err
	}
	view := ticket.View(creator)
	return &view, nil
}

// DeleteTicket removes a ticket with its comments and audit trail in one transaction.
func (s *TicketService) DeleteTicket(ctx context.Context, requester string, ticketID int64) error {
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := lookupUser(ctx, repos.Users, requester); err != nil {
			return err
		}
		if _, err := repos.Tickets.GetByIDForUpdate(ctx, ticketID); err != nil {
			return ticketLookupError(err, ticketID)
		}
		if err := repos.Comments.DeleteByTicket(ctx, ticketID); err != nil {
			return err
		}
		if err := repos.AuditLogs.DeleteByTicket(ctx, ticketID); err != nil {
			return err
		}
		if err := repos.Tickets.Delete(ctx, ticketID); err != nil {
			return ticketLookupError(err, ticketID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketDeleted, ticketID, requester, nil))
	return nil
}

// ListAuditLog returns a ticket's audit entries, newest first.
func (s *TicketService) ListAuditLog(ctx context.Context, ticketID int64) ([]domain.AuditLogView, error) {
	repos := s.store.Repositories()
	if _, err := repos.Tickets.GetByID(ctx, ticketID); err != nil {
		return nil, ticketLookupError(err, ticketID)
	}
	entries, err := repos.AuditLogs.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	names := newUsernameResolver(repos.Users)
	views := make([]domain.AuditLogView, 0, len(entries))
	for i := range entries {
		actor, err := names.name(ctx, entries[i].UserID)
		if err != nil {
			return nil, err
		}
		views = append(views, entries[i].View(actor))
	}
	return views, nil
}

func (s *TicketService) project(ctx context.Context, repos repository.Repositories, tickets []domain.Ticket) ([]domain.TicketView, error) {
	names := newUsernameResolver(repos.Users)
	views := make([]domain.TicketView, 0, len(tickets))
	for i := range tickets {
		creator, err := names.name(ctx, tickets[i].CreatedByID)
		if err != nil {
			return nil, err
		}
		views = append(views, tickets[i].View(creator))
	}
	return views, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, event)
}

func validateCreateInput(input TicketCreateInput) (*domain.Ticket, error) {
	details := map[string]any{}

	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		details["title"] = "required"
	case utf8.RuneCountInString(title) > domain.MaxTitleLength:
		details["title"] = "too long"
	}

	description := strings.TrimSpace(input.Description)
	switch {
	case description == "":
		details["description"] = "required"
	case utf8.RuneCountInString(description) > domain.MaxDescriptionLength:
		details["description"] = "too long"
	}

	priority, ok := domain.ParseTicketPriority(input.Priority)
	if !ok {
		details["priority"] = "must be LOW, MEDIUM or HIGH"
	}
	category, ok := domain.ParseTicketCategory(input.Category)
	if !ok {
		details["category"] = "must be NETWORK, HARDWARE, SOFTWARE or OTHER"
	}

	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}
	return &domain.Ticket{
		Title:       title,
		Description: description,
		Priority:    priority,
		Category:    category,
		Status:      domain.TicketStatusNew,
	}, nil
}

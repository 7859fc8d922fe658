package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const commentPreviewLength = 80

// CommentService manages ticket comments. Comments are not audited.
type CommentService struct {
	store      repository.UnitOfWork
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	Store      repository.UnitOfWork
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{store: deps.Store, dispatcher: deps.Dispatcher, logger: logger}
}

// AddComment attaches content to a ticket on behalf of requester.
func (s *CommentService) AddComment(ctx context.Context, requester string, ticketID int64, content string) (*domain.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("invalid comment", map[string]any{"content": "required"})
	}

	var comment domain.Comment
	var author string
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		user, err := lookupUser(ctx, repos.Users, requester)
		if err != nil {
			return err
		}
		if _, err := repos.Tickets.GetByID(ctx, ticketID); err != nil {
			return ticketLookupError(err, ticketID)
		}
		comment = domain.Comment{TicketID: ticketID, UserID: user.ID, Content: content}
		author = user.Username
		return repos.Comments.Create(ctx, &comment)
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventCommentAdded, ticketID, requester, events.CommentAddedPayload{
		CommentID:   comment.ID,
		BodyPreview: preview(content, commentPreviewLength),
	}))
	view := comment.View(author)
	return &view, nil
}

// ListCommentsForTicket returns comments newest first. Unknown tickets yield
// an empty list, and any authenticated caller may read any ticket's comments.
func (s *CommentService) ListCommentsForTicket(ctx context.Context, ticketID int64) ([]domain.CommentView, error) {
	repos := s.store.Repositories()
	comments, err := repos.Comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	names := newUsernameResolver(repos.Users)
	views := make([]domain.CommentView, 0, len(comments))
	for i := range comments {
		author, err := names.name(ctx, comments[i].UserID)
		if err != nil {
			return nil, err
		}
		views = append(views, comments[i].View(author))
	}
	return views, nil
}

func preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

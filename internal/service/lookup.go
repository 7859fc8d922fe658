package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func lookupUser(ctx context.Context, users repository.UserRepository, username string) (*domain.User, error) {
	user, err := users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
	}
	return user, err
}

func ticketLookupError(err error, ticketID int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

// usernameResolver memoises user id to username lookups for one call.
type usernameResolver struct {
	users repository.UserRepository
	cache map[int64]string
}

func newUsernameResolver(users repository.UserRepository) *usernameResolver {
	return &usernameResolver{users: users, cache: map[int64]string{}}
}

func (r *usernameResolver) name(ctx context.Context, userID int64) (string, error) {
	if name, ok := r.cache[userID]; ok {
		return name, nil
	}
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	r.cache[userID] = user.Username
	return user.Username, nil
}

// publishEvent runs after commit; handler failures never fail the operation.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

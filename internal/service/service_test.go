package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type testEnv struct {
	store    *memory.Store
	tickets  *TicketService
	comments *CommentService
	auth     *AuthService
	events   *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	dispatcher.SubscribeAll(recorder.handle)

	env := &testEnv{
		store:    store,
		tickets:  NewTicketService(TicketDependencies{Store: store, Dispatcher: dispatcher}),
		comments: NewCommentService(CommentDependencies{Store: store, Dispatcher: dispatcher}),
		auth:     NewAuthService(config.AuthConfig{JWTSecret: "test", BcryptCost: 4}, AuthDependencies{Store: store}),
		events:   recorder,
	}
	env.addUser(t, "alice", domain.RoleEmployee)
	env.addUser(t, "bob", domain.RoleITSupport)
	env.addUser(t, "carol", domain.RoleEmployee)
	return env
}

func (e *testEnv) addUser(t *testing.T, username string, role domain.Role) {
	t.Helper()
	_, created, err := e.auth.EnsureUser(context.Background(), NewUserInput{
		Username: username, Password: "pw-" + username, FullName: username, Role: role,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func (e *testEnv) createTicket(t *testing.T, owner, title string) *domain.TicketView {
	t.Helper()
	view, err := e.tickets.CreateTicket(context.Background(), owner, TicketCreateInput{
		Title: title, Description: "details", Priority: "HIGH", Category: "HARDWARE",
	})
	require.NoError(t, err)
	return view
}

func (e *testEnv) audit(t *testing.T, ticketID int64) []domain.AuditLogView {
	t.Helper()
	entries, err := e.tickets.ListAuditLog(context.Background(), ticketID)
	require.NoError(t, err)
	return entries
}

func TestCreateTicket_WritesCreationAudit(t *testing.T) {
	env := newTestEnv(t)
	view := env.createTicket(t, "alice", "Printer down")

	assert.Equal(t, domain.TicketStatusNew, view.Status)
	assert.Equal(t, "alice", view.CreatedByUsername)
	assert.Equal(t, domain.TicketPriorityHigh, view.Priority)
	assert.Equal(t, domain.TicketCategoryHardware, view.Category)
	assert.False(t, view.CreatedAt.IsZero())

	entries := env.audit(t, view.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditActionTicketCreated, entries[0].Action)
	assert.Equal(t, "NONE", entries[0].OldValue)
	assert.Equal(t, "NEW", entries[0].NewValue)
	assert.Equal(t, "alice", entries[0].Username)

	assert.Equal(t, []events.EventType{events.EventTicketCreated}, env.events.types())
}

func TestCreateTicket_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	long := make([]rune, domain.MaxTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}

	cases := map[string]TicketCreateInput{
		"empty title":       {Title: "  ", Description: "d", Priority: "LOW", Category: "OTHER"},
		"empty description": {Title: "t", Description: "", Priority: "LOW", Category: "OTHER"},
		"title too long":    {Title: string(long), Description: "d", Priority: "LOW", Category: "OTHER"},
		"bad priority":      {Title: "t", Description: "d", Priority: "URGENT", Category: "OTHER"},
		"bad category":      {Title: "t", Description: "d", Priority: "LOW", Category: "PRINTERS"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.tickets.CreateTicket(ctx, "alice", input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}

	all, err := env.tickets.SearchTickets(ctx, TicketSearch{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateTicket_UnknownRequester(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.tickets.CreateTicket(context.Background(), "mallory", TicketCreateInput{
		Title: "t", Description: "d", Priority: "low", Category: "network",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdateStatus_AppendsAuditEvenForNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, "alice", "VPN")

	updated, err := env.tickets.UpdateStatus(ctx, "bob", ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, "alice", updated.CreatedByUsername)

	_, err = env.tickets.UpdateStatus(ctx, "bob", ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	// Any status may follow any other, including back to NEW.
	_, err = env.tickets.UpdateStatus(ctx, "bob", ticket.ID, domain.TicketStatusNew)
	require.NoError(t, err)

	entries := env.audit(t, ticket.ID)
	require.Len(t, entries, 4)
	assert.Equal(t, [2]string{"IN_PROGRESS", "NEW"}, [2]string{entries[0].OldValue, entries[0].NewValue})
	assert.Equal(t, [2]string{"IN_PROGRESS", "IN_PROGRESS"}, [2]string{entries[1].OldValue, entries[1].NewValue})
	assert.Equal(t, [2]string{"NEW", "IN_PROGRESS"}, [2]string{entries[2].OldValue, entries[2].NewValue})
	assert.Equal(t, "bob", entries[0].Username)
}

func TestUpdateStatus_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, "alice", "VPN")

	_, err := env.tickets.UpdateStatus(ctx, "bob", 999, domain.TicketStatusResolved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = env.tickets.UpdateStatus(ctx, "ghost", ticket.ID, domain.TicketStatusResolved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = env.tickets.UpdateStatus(ctx, "bob", ticket.ID, domain.TicketStatus("CLOSED"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	assert.Len(t, env.audit(t, ticket.ID), 1)
}

// failingAuditStore substitutes an audit repository that always fails inside
// transactions.
type failingAuditStore struct {
	*memory.Store
}

var errAuditDown = errors.New("audit store unavailable")

type failingAudit struct {
	repository.AuditLogRepository
}

func (failingAudit) Create(context.Context, *domain.AuditLog) error { return errAuditDown }

func (f failingAuditStore) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	return f.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		repos.AuditLogs = failingAudit{repos.AuditLogs}
		return fn(repos)
	})
}

func TestAuditFailureRollsBackTicketWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, "alice", "Monitor flickers")

	broken := NewTicketService(TicketDependencies{Store: failingAuditStore{env.store}})

	_, err := broken.UpdateStatus(ctx, "bob", ticket.ID, domain.TicketStatusResolved)
	require.ErrorIs(t, err, errAuditDown)
	got, err := env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, got.Status)
	assert.Len(t, env.audit(t, ticket.ID), 1)

	_, err = broken.CreateTicket(ctx, "alice", TicketCreateInput{Title: "t", Description: "d", Priority: "LOW", Category: "OTHER"})
	require.ErrorIs(t, err, errAuditDown)
	all, err := env.tickets.SearchTickets(ctx, TicketSearch{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListTicketsForCaller_RoleFiltering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.createTicket(t, "alice", "a1")
	env.createTicket(t, "carol", "c1")
	a2 := env.createTicket(t, "alice", "a2")
	env.createTicket(t, "bob", "b1")

	own, err := env.tickets.ListTicketsForCaller(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, []int64{a1.ID, a2.ID}, []int64{own[0].ID, own[1].ID})
	for _, v := range own {
		assert.Equal(t, "alice", v.CreatedByUsername)
	}

	all, err := env.tickets.ListTicketsForCaller(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = env.tickets.ListTicketsForCaller(ctx, "ghost")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSearchTickets_Precedence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createTicket(t, "alice", "first")
	second := env.createTicket(t, "alice", "second")
	_, err := env.tickets.UpdateStatus(ctx, "bob", second.ID, domain.TicketStatusResolved)
	require.NoError(t, err)

	resolved := domain.TicketStatusResolved
	// The id wins even though the ticket does not have the requested status.
	byID, err := env.tickets.SearchTickets(ctx, TicketSearch{TicketID: &first.ID, Status: &resolved})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, first.ID, byID[0].ID)

	missing := int64(404)
	none, err := env.tickets.SearchTickets(ctx, TicketSearch{TicketID: &missing, Status: &resolved})
	require.NoError(t, err)
	assert.Empty(t, none)

	byStatus, err := env.tickets.SearchTickets(ctx, TicketSearch{Status: &resolved})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, second.ID, byStatus[0].ID)

	all, err := env.tickets.SearchTickets(ctx, TicketSearch{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConcurrentStatusUpdatesKeepEveryAuditRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, "alice", "race")

	targets := []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusResolved}
	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, status := range targets {
		wg.Add(1)
		go func(i int, status domain.TicketStatus) {
			defer wg.Done()
			_, errs[i] = env.tickets.UpdateStatus(ctx, "bob", ticket.ID, status)
		}(i, status)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	entries := env.audit(t, ticket.ID)
	require.Len(t, entries, 3)
	final, err := env.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	// Newest entry describes the winning write, and each entry chains from the previous one.
	assert.Equal(t, string(final.Status), entries[0].NewValue)
	assert.Equal(t, entries[1].NewValue, entries[0].OldValue)
	assert.Equal(t, "NEW", entries[1].OldValue)
}

func TestDeleteTicket_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, "alice", "old")
	_, err := env.comments.AddComment(ctx, "bob", ticket.ID, "looking")
	require.NoError(t, err)

	require.NoError(t, env.tickets.DeleteTicket(ctx, "bob", ticket.ID))

	_, err = env.tickets.GetTicket(ctx, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	comments, err := env.comments.ListCommentsForTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	audit, err := env.store.Repositories().AuditLogs.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, audit)

	err = env.tickets.DeleteTicket(ctx, "bob", ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Contains(t, env.events.types(), events.EventTicketDeleted)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.createTicket(t, "alice", "keyboard")

	_, err := env.comments.AddComment(ctx, "alice", 999, "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = env.comments.AddComment(ctx, "ghost", ticket.ID, "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = env.comments.AddComment(ctx, "alice", ticket.ID, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	none, err := env.comments.ListCommentsForTicket(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)

	first, err := env.comments.AddComment(ctx, "alice", ticket.ID, "first")
	require.NoError(t, err)
	second, err := env.comments.AddComment(ctx, "bob", ticket.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "bob", second.Username)

	// carol cannot list alice's ticket but may read its comments.
	list, err := env.comments.ListCommentsForTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	// Comments are not audited.
	assert.Len(t, env.audit(t, ticket.ID), 1)
	assert.Contains(t, env.events.types(), events.EventCommentAdded)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "héll...", preview("héllo world", 4))
}

// Package memory provides an in-process UnitOfWork used when no database is
// configured and by tests. Transactions are serialised and roll back by
// restoring a snapshot taken when they began.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type state struct {
	users    map[int64]domain.User
	tickets  map[int64]domain.Ticket
	comments map[int64]domain.Comment
	audit    map[int64]domain.AuditLog
}

func newState() *state {
	return &state{
		users:    map[int64]domain.User{},
		tickets:  map[int64]domain.Ticket{},
		comments: map[int64]domain.Comment{},
		audit:    map[int64]domain.AuditLog{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	for k, v := range s.audit {
		c.audit[k] = v
	}
	return c
}

// Store is a mutex-guarded UnitOfWork. Sequences live outside the snapshot so
// identifiers are never reused after a rollback.
type Store struct {
	mu  sync.Mutex
	st  *state
	seq struct {
		users, tickets, comments, audit int64
	}
	now func() time.Time
}

var _ repository.UnitOfWork = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// Repositories implements repository.UnitOfWork.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(false)
}

// WithinTx implements repository.UnitOfWork.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()
	return fn(s.bind(true))
}

func (s *Store) bind(inTx bool) repository.Repositories {
	base := &access{store: s, inTx: inTx}
	return repository.Repositories{
		Users:     &userRepo{base},
		Tickets:   &ticketRepo{base},
		Comments:  &commentRepo{base},
		AuditLogs: &auditRepo{base},
	}
}

type access struct {
	store *Store
	inTx  bool
}

// do runs fn against the live state, taking the lock unless a transaction
// already holds it.
func (a *access) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.inTx {
		a.store.mu.Lock()
		defer a.store.mu.Unlock()
	}
	return fn(a.store.st)
}

type userRepo struct{ *access }

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.do(ctx, func(st *state) error {
		for _, existing := range st.users {
			if existing.Username == user.Username {
				return repository.ErrAlreadyExists
			}
		}
		r.store.seq.users++
		user.ID = r.store.seq.users
		user.CreatedAt = r.store.now()
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out domain.User
	err := r.do(ctx, func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var out domain.User
	err := r.do(ctx, func(st *state) error {
		for _, user := range st.users {
			if user.Username == username {
				out = user
				return nil
			}
		}
		return repository.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type ticketRepo struct{ *access }

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.users[ticket.CreatedByID]; !ok {
			return repository.ErrNotFound
		}
		r.store.seq.tickets++
		ticket.ID = r.store.seq.tickets
		ticket.CreatedAt = r.store.now()
		st.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r *ticketRepo) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	return r.do(ctx, func(st *state) error {
		ticket, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		ticket.Status = status
		st.tickets[id] = ticket
		return nil
	})
}

func (r *ticketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var out domain.Ticket
	err := r.do(ctx, func(st *state) error {
		ticket, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByIDForUpdate needs no extra locking: transactions are already serialised.
func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return r.filter(ctx, func(domain.Ticket) bool { return true })
}

func (r *ticketRepo) ListByCreator(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	return r.filter(ctx, func(t domain.Ticket) bool { return t.CreatedByID == userID })
}

func (r *ticketRepo) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return r.filter(ctx, func(t domain.Ticket) bool { return t.Status == status })
}

func (r *ticketRepo) filter(ctx context.Context, keep func(domain.Ticket) bool) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	err := r.do(ctx, func(st *state) error {
		for _, ticket := range st.tickets {
			if keep(ticket) {
				result = append(result, ticket)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

func (r *ticketRepo) Delete(ctx context.Context, id int64) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.tickets[id]; !ok {
			return repository.ErrNotFound
		}
		for _, c := range st.comments {
			if c.TicketID == id {
				return errForeignKey
			}
		}
		for _, a := range st.audit {
			if a.TicketID == id {
				return errForeignKey
			}
		}
		delete(st.tickets, id)
		return nil
	})
}

type commentRepo struct{ *access }

func (r *commentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	return r.do(ctx, func(st *state) error {
		if err := st.checkRefs(comment.TicketID, comment.UserID); err != nil {
			return err
		}
		r.store.seq.comments++
		comment.ID = r.store.seq.comments
		comment.CreatedAt = r.store.now()
		st.comments[comment.ID] = *comment
		return nil
	})
}

func (r *commentRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	result := []domain.Comment{}
	err := r.do(ctx, func(st *state) error {
		for _, c := range st.comments {
			if c.TicketID == ticketID {
				result = append(result, c)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, err
}

func (r *commentRepo) DeleteByTicket(ctx context.Context, ticketID int64) error {
	return r.do(ctx, func(st *state) error {
		for id, c := range st.comments {
			if c.TicketID == ticketID {
				delete(st.comments, id)
			}
		}
		return nil
	})
}

type auditRepo struct{ *access }

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.do(ctx, func(st *state) error {
		if err := st.checkRefs(entry.TicketID, entry.UserID); err != nil {
			return err
		}
		r.store.seq.audit++
		entry.ID = r.store.seq.audit
		entry.Timestamp = r.store.now()
		st.audit[entry.ID] = *entry
		return nil
	})
}

func (r *auditRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditLog, error) {
	result := []domain.AuditLog{}
	err := r.do(ctx, func(st *state) error {
		for _, a := range st.audit {
			if a.TicketID == ticketID {
				result = append(result, a)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, err
}

func (r *auditRepo) DeleteByTicket(ctx context.Context, ticketID int64) error {
	return r.do(ctx, func(st *state) error {
		for id, a := range st.audit {
			if a.TicketID == ticketID {
				delete(st.audit, id)
			}
		}
		return nil
	})
}

// errForeignKey mirrors the Postgres behaviour of refusing to delete a ticket
// that still has comments or audit rows.
var errForeignKey = errors.New("ticket still referenced by comments or audit logs")

func (s *state) checkRefs(ticketID, userID int64) error {
	if _, ok := s.tickets[ticketID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

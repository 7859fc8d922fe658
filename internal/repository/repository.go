package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Repositories bundles the per-entity repositories bound to one connection or transaction.
type Repositories struct {
	Users     UserRepository
	Tickets   TicketRepository
	Comments  CommentRepository
	AuditLogs AuditLogRepository
}

// UnitOfWork hands out repositories, optionally scoped to a transaction.
type UnitOfWork interface {
	// Repositories returns repositories that auto-commit each call.
	Repositories() Repositories
	// WithinTx runs fn in a single transaction; fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// NewRepositories binds all Postgres repositories to q.
func NewRepositories(q Querier) Repositories {
	return Repositories{
		Users:     NewUserRepository(q),
		Tickets:   NewTicketRepository(q),
		Comments:  NewCommentRepository(q),
		AuditLogs: NewAuditLogRepository(q),
	}
}

// Store is the Postgres UnitOfWork.
type Store struct {
	pool PgxPool
}

// NewStore wraps a pool.
func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

// Repositories implements UnitOfWork.
func (s *Store) Repositories() Repositories {
	return NewRepositories(s.pool)
}

// WithinTx implements UnitOfWork.
func (s *Store) WithinTx(ctx context.Context, fn func(Repositories) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	return fn(NewRepositories(tx))
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

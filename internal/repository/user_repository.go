package repository

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type userRepository struct {
	db Querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db Querier) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, password_hash, full_name, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		user.Username,
		user.PasswordHash,
		user.FullName,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, full_name, role, created_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, full_name, role, created_at
        FROM users WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

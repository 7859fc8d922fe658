package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthService verifies credentials, issues tokens and provisions accounts.
type AuthService struct {
	store    repository.UnitOfWork
	hasher   *auth.PasswordHasher
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store  repository.UnitOfWork
	Logger *zap.Logger
}

// NewUserInput describes an account to provision.
type NewUserInput struct {
	Username string
	Password string
	FullName string
	Role     domain.Role
}

var _ auth.Authenticator = (*AuthService)(nil)

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:    deps.Store,
		hasher:   auth.NewPasswordHasher(cfg.BcryptCost),
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		logger:   logger,
	}
}

// Authenticate verifies a username/password pair. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.store.Repositories().Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, domain.AccessToken, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, domain.AccessToken{}, err
	}
	token, err := s.tokenMgr.GenerateToken(user.Username)
	if err != nil {
		return nil, domain.AccessToken{}, err
	}
	return user, token, nil
}

// ResolveToken validates a bearer token and loads its user fresh from the store.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*domain.User, error) {
	username, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	user, err := s.store.Repositories().Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("token subject no longer exists")
	}
	return user, err
}

// CurrentUser loads the stored record for username.
func (s *AuthService) CurrentUser(ctx context.Context, username string) (*domain.User, error) {
	return lookupUser(ctx, s.store.Repositories().Users, username)
}

// CreateUser provisions a new account. A taken username is a Conflict.
func (s *AuthService) CreateUser(ctx context.Context, input NewUserInput) (*domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	details := map[string]any{}
	if input.Username == "" {
		details["username"] = "required"
	}
	if input.Password == "" {
		details["password"] = "required"
	}
	if !input.Role.Valid() {
		details["role"] = "must be EMPLOYEE or IT_SUPPORT"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     input.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Role:         input.Role,
	}
	if err := s.store.Repositories().Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": input.Username})
		}
		return nil, err
	}
	return user, nil
}

// EnsureUser creates the account unless one with the same username exists.
// The boolean reports whether a new user was created.
func (s *AuthService) EnsureUser(ctx context.Context, input NewUserInput) (*domain.User, bool, error) {
	users := s.store.Repositories().Users
	existing, err := users.GetByUsername(ctx, strings.TrimSpace(input.Username))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	user, err := s.CreateUser(ctx, input)
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		// Lost a race with another creator.
		existing, err = users.GetByUsername(ctx, strings.TrimSpace(input.Username))
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Bootstrap provisions the configured accounts.
func (s *AuthService) Bootstrap(ctx context.Context, accounts []config.BootstrapUser) error {
	for _, account := range accounts {
		user, created, err := s.EnsureUser(ctx, NewUserInput{
			Username: account.Username,
			Password: account.Password,
			FullName: account.FullName,
			Role:     account.Role,
		})
		if err != nil {
			return err
		}
		if created {
			s.logger.Info("bootstrap user created", zap.String("username", user.Username), zap.String("role", string(user.Role)))
		} else {
			s.logger.Debug("bootstrap user exists", zap.String("username", user.Username))
		}
	}
	return nil
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

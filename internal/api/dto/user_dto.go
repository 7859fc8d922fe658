package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse is the public user view.
type UserResponse struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"fullName"`
	Role     domain.Role `json:"role"`
}

// LoginResponse returns the user view and an optional bearer token.
type LoginResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// NewUserResponse maps a domain view.
func NewUserResponse(v domain.UserView) UserResponse {
	return UserResponse{ID: v.ID, Username: v.Username, FullName: v.FullName, Role: v.Role}
}

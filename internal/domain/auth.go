package domain

import "time"

// AccessToken describes a bearer token issued at login.
type AccessToken struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Credentials is a username/secret pair presented by a caller.
type Credentials struct {
	Username string
	Password string
}

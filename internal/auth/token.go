package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

const tokenIssuer = "support-desk"

// TokenManager issues and validates bearer tokens. Tokens carry only the
// username; the role is looked up on every request.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken signs a token for username.
func (tm *TokenManager) GenerateToken(username string) (domain.AccessToken, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return domain.AccessToken{
		Token:     signed,
		Username:  username,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates tokenStr and returns its subject.
func (tm *TokenManager) ParseToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.Subject, nil
}

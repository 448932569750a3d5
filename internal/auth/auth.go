package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/ambulance-dispatch/internal/models"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Claims carries the subject id in RegisteredClaims plus the role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to every request and realtime
// message after the gate has run.
type Identity struct {
	UserID string
	Role   models.Role
	User   models.User
}

// UserFinder resolves a token subject to a live user record.
type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (models.User, error)
}

// Gate validates bearer tokens and enforces role-scoped access.
type Gate struct {
	secret []byte
	users  UserFinder
	ttl    time.Duration
}

func NewGate(secret string, users UserFinder, ttl time.Duration) *Gate {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Gate{secret: []byte(secret), users: users, ttl: ttl}
}

// Verify parses and validates a signed token and resolves its subject.
// Any failure collapses to ErrUnauthorized; callers never learn which
// check tripped.
func (g *Gate) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrUnauthorized
	}
	user, err := g.users.FindUserByID(ctx, claims.Subject)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: user.ID, Role: user.Role, User: user}, nil
}

// Issue signs a token for the given subject and role.
func (g *Gate) Issue(subject string, role models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// RequireRole gates operations restricted to a single role.
func RequireRole(id Identity, role models.Role) error {
	if id.Role != role {
		return ErrForbidden
	}
	return nil
}

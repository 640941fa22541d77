// Package session carries the signed-in actor explicitly instead of through
// global state. Servers mint and verify tokens with an Issuer; clients read
// the claims of a token they were handed with FromToken.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Session identifies the actor behind every request.
type Session struct {
	ActorID string
	Role    Role
	Token   string
}

// AuthorizationHeader returns the bearer header value, or "" when there is
// no token so callers can omit the header entirely.
func (s Session) AuthorizationHeader() string {
	if s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// Claims is the JWT payload.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a token for the actor and returns the full session.
func (i *Issuer) Issue(actorID string, role Role) (Session, error) {
	if !role.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	now := i.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{ActorID: actorID, Role: role, Token: signed}, nil
}

// Verify checks signature and expiry and returns the session it encodes.
func (i *Issuer) Verify(token string) (Session, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	return fromClaims(claims, token)
}

// FromToken decodes the claims of a token without verifying the signature.
// Only the server can verify; the client needs the actor id and role to pick
// its views.
func FromToken(token string) (Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	claims := Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return fromClaims(claims, token)
}

func fromClaims(claims Claims, token string) (Session, error) {
	if claims.Subject == "" {
		return Session{}, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return Session{ActorID: claims.Subject, Role: claims.Role, Token: token}, nil
}

type contextKey struct{}

// WithSession stores s on ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by the auth middleware.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

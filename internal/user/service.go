package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidUser        = errors.New("first name, last name, email, password and a valid role are required")
)

// Service authenticates users and mints their sessions.
type Service struct {
	repo   Repository
	issuer *session.Issuer
	logger *logging.Logger
	cost   int
}

func NewService(repo Repository, issuer *session.Issuer, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		issuer: issuer,
		logger: logger.Component("auth"),
		cost:   bcrypt.DefaultCost,
	}
}

// Login checks the password and returns a signed session together with the user.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, *User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return session.Session{}, nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return session.Session{}, nil, ErrInvalidCredentials
		}
		return session.Session{}, nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info().Str("user_id", u.ID.String()).Msg("login rejected")
		return session.Session{}, nil, ErrInvalidCredentials
	}

	sess, err := s.issuer.Issue(u.ID.String(), u.Role)
	if err != nil {
		return session.Session{}, nil, fmt.Errorf("issue session: %w", err)
	}
	return sess, u, nil
}

// Register hashes the password and stores the user.
func (s *Service) Register(ctx context.Context, in NewUser) (*User, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" || !in.Role.Valid() {
		return nil, ErrInvalidUser
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, User{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           in.Email,
		PasswordHash:    hash,
		Role:            in.Role,
		Specialization:  in.Specialization,
		ConsultationFee: in.ConsultationFee,
	})
}

// HashPassword bcrypt-hashes a password at the given cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

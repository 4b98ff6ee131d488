package users

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "main/internal/domain/entity/users"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const minPasswordLength = 8

// Service manages account registration and token authentication.
type Service struct {
	repo interfaces.UsersRepository
}

func NewService(repo interfaces.UsersRepository) *Service {
	return &Service{repo: repo}
}

// Register creates a user with a bcrypt password hash. The repository
// provisions the cash balance and per-instrument quantity balances in the
// same transaction as the user row.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		UID:          uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and issues an opaque bearer token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token := &domain.Token{
		Value:     uuid.NewString(),
		UserUID:   user.UID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// UserByToken resolves a bearer token to its active owner.
func (s *Service) UserByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.repo.GetUserByToken(ctx, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, uid uuid.UUID) (*domain.User, error) {
	return s.repo.GetUser(ctx, uid)
}
